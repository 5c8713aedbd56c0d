package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/unicc-ai/testbridge/internal/adapter"
	"github.com/unicc-ai/testbridge/internal/config"
	"github.com/unicc-ai/testbridge/internal/orchestrator"
	"github.com/unicc-ai/testbridge/internal/server"
	"github.com/unicc-ai/testbridge/internal/storage/sqlite"
	"github.com/unicc-ai/testbridge/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default()

			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if port > 0 {
				cfg.Server.Port = port
			}

			shutdown, err := telemetry.InitTracer("testbridge", logger)
			if err != nil {
				return fmt.Errorf("initialize tracer: %w", err)
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
				}
			}()

			var store server.RunStore
			if cfg.Storage.Path != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
					return fmt.Errorf("create storage directory: %w", err)
				}
				db, err := sqlite.New(cfg.Storage.Path)
				if err != nil {
					return fmt.Errorf("open run store: %w", err)
				}
				defer db.Close()
				store = db
			}

			registry := adapter.NewRegistry(config.NewResolver(cfg))
			orch := orchestrator.New(registry, cfg.Judge, orchestrator.WithLogger(logger))
			handler := server.NewHandler(orch, registry, store, logger)
			srv := server.New(cfg.Server.Port, logger, handler)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides configuration)")
	return cmd
}
