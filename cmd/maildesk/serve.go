package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maildeskhq/maildesk/internal/schedule"
	"github.com/maildeskhq/maildesk/internal/web"
)

const shutdownTimeout = 10 * time.Second

func buildServeCmd() *cobra.Command {
	var configFile string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the maildesk API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				a.Close(closeCtx)
			}()

			handler := web.NewHandler(&web.Config{
				Store:    a.store,
				Pipeline: a.pipeline,
				Bus:      a.bus,
				Locks:    a.locks,
				Usage:    a.usage,
				Logger:   a.logger,
				Metrics:  a.metrics,
			})

			if cfg.Schedule.Cron != "" {
				scheduler, err := schedule.New(cfg.Schedule.Cron, cfg.Schedule.Timezone, a.pipeline, a.logger)
				if err != nil {
					return fmt.Errorf("build scheduler: %w", err)
				}
				scheduler.Start()
				defer scheduler.Stop()
				a.logger.Info(ctx, "batch schedule active",
					"cron", cfg.Schedule.Cron,
					"next", scheduler.Next().Format(time.RFC3339),
				)
			}

			srv := &http.Server{
				Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
				Handler:           handler.Mount(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info(ctx, "server listening", "addr", srv.Addr, "version", version)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("server error: %w", err)
			case <-ctx.Done():
			}

			a.logger.Info(ctx, "shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}

	serveCmd.Flags().StringVarP(&configFile, "config", "c", "", "path to config file")
	return serveCmd
}
