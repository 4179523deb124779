package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/aselink/internal/bridge"
	"github.com/1ureka/aselink/internal/config"
	"github.com/1ureka/aselink/internal/metrics"
	"github.com/1ureka/aselink/internal/scene"
	"github.com/1ureka/aselink/internal/util"
)

func serveCmd() *cobra.Command {
	// Flag defaults already include environment overrides.
	cfg := config.Default()
	envErr := cfg.ApplyEnv()
	var interactive bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the host end of the editor link",
		Long: `Serve the websocket endpoint the editor connects to.

Only one editor may be attached at a time. Inbound images, spritesheets,
frame flips and layer stacks are applied to the scene store: SQLite when
--db is given, in memory otherwise.

Environment:
  ASELINK_PORT, ASELINK_HOST, ASELINK_ID, ASELINK_DB

Examples:
  aselink serve
  aselink serve --lan
  aselink serve --db=scene.db --metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if envErr != nil {
				return envErr
			}
			return runServe(cmd.Context(), cfg, interactive)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfg.Host, "host", "H", cfg.Host, "Address to bind (default 127.0.0.1, or 0.0.0.0 with --lan)")
	f.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Websocket port")
	f.BoolVar(&cfg.LAN, "lan", cfg.LAN, "Accept editors from other machines")
	f.StringVar(&cfg.Identifier, "id", cfg.Identifier, "Stable session identifier (random when empty)")
	f.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite scene store path (in-memory when empty)")
	f.BoolVar(&cfg.MetricsEnabled, "metrics", cfg.MetricsEnabled, "Serve Prometheus metrics on /metrics")
	f.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")
	f.DurationVar(&cfg.StatsInterval, "stats-interval", cfg.StatsInterval, "Traffic log period, 0 disables")
	f.IntVar(&cfg.SendBuffer, "send-buffer", cfg.SendBuffer, "Outgoing message queue capacity")
	f.Int64Var(&cfg.MaxMessageSize, "max-message-size", cfg.MaxMessageSize, "Largest accepted inbound message in bytes")
	f.BoolVarP(&interactive, "interactive", "i", false, "Prompt for the port")

	return cmd
}

func runServe(ctx context.Context, cfg config.Config, interactive bool) error {
	if cfg.Debug {
		util.EnableDebug()
	}
	printBanner()

	if interactive {
		cfg.Port = askPort(fmt.Sprintf("Port for the editor link (default %d)", cfg.Port), cfg.Port)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── Scene store ─────────────────────────────────────────────────────
	var store scene.Store
	if cfg.DBPath != "" {
		db, err := scene.OpenSQLite(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		if cfg.Identifier == "" {
			id, err := db.Identifier(ctx, util.NewSessionID)
			if err != nil {
				return err
			}
			cfg.Identifier = id
		}
		store = db
		util.LogInfo("Scene store: %s", cfg.DBPath)
	} else {
		store = scene.NewMemory()
	}

	// ── Metrics ─────────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metricsHandler = metrics.Handler(reg)
	}

	b := bridge.New(cfg, bridge.Deps{
		Store:          store,
		Notifier:       scene.ConsoleNotifier{},
		Metrics:        metrics.New(reg),
		MetricsHandler: metricsHandler,
	})
	util.LogInfo("Session identifier: %s", b.ID())
	if cfg.MetricsEnabled {
		util.LogInfo("Metrics on http://%s/metrics", cfg.Addr())
	}

	util.StartStatsReporter(ctx, cfg.StatsInterval)

	if err := b.Run(ctx); err != nil {
		return fmt.Errorf("failed to serve the editor link: %w", err)
	}
	util.LogInfo("successfully closed the editor link")
	return nil
}

// askPort prompts for a port until a valid one, or nothing, is entered.
func askPort(prompt string, fallback int) int {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			Show()

		raw = strings.TrimSpace(raw)
		if raw == "" {
			pterm.Println()
			return fallback
		}
		port, err := strconv.Atoi(raw)
		if err == nil && port >= 1 && port <= 65535 {
			pterm.Println()
			return port
		}

		util.LogWarning("invalid port number: must be 1 ~ 65535")
		pterm.Println()
	}
}
