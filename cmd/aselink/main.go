// aselink: CLI entry point.
//
// aselink serves the host end of a live texture link with a pixel-art
// editor: the editor connects over a websocket and keeps images, animation
// frames and layer stacks in sync with the host scene.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "aselink",
		Short: "Live texture link between a 3D host and a pixel-art editor",
		Long: `aselink keeps textures, animation frames and layer stacks in sync
between a 3D host and a pixel-art editor over a local websocket.

Examples:
  aselink serve
  aselink serve --lan --port=34613 --metrics
  aselink push sprite.png --name=hero`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		pushCmd(),
		versionCmd(),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
}

// printBanner prints the program name and version.
func printBanner() {
	pterm.Info.Println(fmt.Sprintf("aselink — v%s", version))
	pterm.Println()
}
