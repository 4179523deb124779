package main

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/1ureka/aselink/internal/config"
	"github.com/1ureka/aselink/internal/protocol"
	"github.com/1ureka/aselink/internal/spritesheet"
	"github.com/1ureka/aselink/internal/transport"
	"github.com/1ureka/aselink/internal/util"
)

func pushCmd() *cobra.Command {
	var (
		url   string
		name  string
		frame int
		flags []string
	)

	cmd := &cobra.Command{
		Use:   "push <file.png>",
		Short: "Send a PNG to a running host, as the editor would",
		Long: `Connect to a running host as the editor and send one image.
The host only updates textures it already knows.

Examples:
  aselink push hero.png
  aselink push hero.png --name=hero.aseprite --flags=SHOW_UV
  aselink push hero.png --url=ws://192.168.1.5:34613/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				name = filepath.Base(args[0])
			}
			return runPush(cmd.Context(), url, args[0], name, frame, flags)
		},
	}

	cmd.Flags().StringVar(&url, "url", transport.URL(config.Default().Addr()), "Websocket URL of the host")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Texture name (default: file name)")
	cmd.Flags().IntVar(&frame, "frame", 0, "Frame number to report")
	cmd.Flags().StringSliceVar(&flags, "flags", nil, "Sync flags, e.g. SHOW_UV")

	return cmd
}

func runPush(ctx context.Context, url, path, name string, frame int, flags []string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	w, h, pixels := spritesheet.RGBA(img)
	if w > 0xFFFF || h > 0xFFFF {
		return fmt.Errorf("%s is %dx%d, larger than the protocol allows", path, w, h)
	}

	for i := range flags {
		flags[i] = strings.ToUpper(strings.TrimSpace(flags[i]))
	}

	client, err := transport.Dial(ctx, url)
	if err != nil {
		return err
	}
	defer client.Close()

	msg := &protocol.Image{
		Width:  uint16(w),
		Height: uint16(h),
		Frame:  uint16(frame),
		Flags:  protocol.NewSyncFlags(flags...),
		Name:   name,
		Pixels: pixels,
	}
	if err := client.Send(msg); err != nil {
		return err
	}
	util.LogSuccess("Sent %q (%dx%d, %s) to %s", name, w, h, util.FormatBytes(len(pixels)), url)
	return nil
}
