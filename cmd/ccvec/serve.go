package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/hupe1980/ccvec"
	"github.com/hupe1980/ccvec/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		if servePort != 0 {
			a.cfg.Server.Port = servePort
		}
		return serve(ctx, a)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "override server port")
}

func serve(ctx context.Context, a *app) error {
	pruner, err := newPruneScheduler(a.db, a.cfg.Index.Prune.Schedule, a.cfg.Index.Prune.Keep, a.logger)
	if err != nil {
		return err
	}
	if pruner != nil {
		pruner.Start()
		defer func() { <-pruner.Stop().Done() }()
	}

	srv := server.NewServer(a.db, a.pipeline, a.metrics, &a.cfg.Server, a.logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// newPruneScheduler returns a cron scheduler pruning old index versions, or
// nil when schedule is empty.
func newPruneScheduler(db *ccvec.DB, schedule string, keep int, logger *slog.Logger) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := db.Prune(ctx, keep); err != nil {
			logger.Error("scheduled prune failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("index.prune.schedule: %w", err)
	}
	return c, nil
}
