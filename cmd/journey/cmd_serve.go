package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/journeygraph/internal/config"
	"github.com/nvandessel/journeygraph/internal/journey"
	"github.com/nvandessel/journeygraph/internal/server"
	"github.com/nvandessel/journeygraph/internal/store"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the journey graph over HTTP",
		Long: `Serve GET and PUT on the journey graph endpoint (default /api/journey-graph).

GET returns {nodes, edges, updatedAt} with an ETag header. PUT replaces the
whole graph with the request body {nodes, edges}; send If-Match to reject
the write when the graph changed since it was read.

Examples:
  journey serve
  journey serve --addr :9090 --backend sqlite
  journey serve --read-policy strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, root, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyServeFlags(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, root, logger)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().String("backend", "", "Store backend: file, sqlite, redis or memory")
	cmd.Flags().String("read-policy", "", "Read failure policy: recover or strict")
	cmd.Flags().Bool("no-watch", false, "Do not watch the graph file for external edits")

	return cmd
}

// applyServeFlags overrides config values with flags the user set.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		cfg.Server.Addr = v
	}
	if v, _ := cmd.Flags().GetString("backend"); v != "" {
		cfg.Store.Backend = v
	}
	if v, _ := cmd.Flags().GetString("read-policy"); v != "" {
		cfg.Store.ReadPolicy = v
	}
	if v, _ := cmd.Flags().GetBool("no-watch"); v {
		cfg.Server.Watch = false
	}
}

func runServe(ctx context.Context, cfg config.Config, root string, logger *zap.Logger) error {
	s, repo, err := openRepository(ctx, cfg, root, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := server.New(repo, server.Config{
		Addr:         cfg.Server.Addr,
		GraphPath:    cfg.Server.GraphPath,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}, logger)

	g, ctx := errgroup.WithContext(ctx)

	if fileStore, ok := s.(*store.FileGraphStore); ok && cfg.Server.Watch {
		watcher, err := store.NewFileWatcher(fileStore.Path(), externalEditLogger(repo, logger))
		if err != nil {
			return err
		}
		watcher.SetErrorHandler(func(err error) {
			logger.Warn("Journey graph watcher error", zap.Error(err))
		})
		if err := watcher.Start(ctx); err != nil {
			watcher.Stop()
			return err
		}
		logger.Info("Watching journey graph file", zap.String("path", fileStore.Path()))
		g.Go(func() error {
			<-ctx.Done()
			return watcher.Stop()
		})
	}

	g.Go(func() error {
		return srv.Run(ctx)
	})

	return g.Wait()
}

// externalEditLogger reports changes to the graph file that this process
// did not make.
func externalEditLogger(repo *journey.Repository, logger *zap.Logger) func(store.WatchEvent) {
	return func(ev store.WatchEvent) {
		switch {
		case errors.Is(ev.Err, store.ErrNotFound):
			logger.Warn("Journey graph file removed; reads will return the empty graph",
				zap.String("path", ev.Path))
		case ev.Err != nil:
			logger.Warn("Journey graph file is unreadable",
				zap.String("path", ev.Path),
				zap.Bool("corrupt", errors.Is(ev.Err, store.ErrCorrupt)),
				zap.Error(ev.Err))
		case repo.WroteLast(ev.Graph):
		default:
			logger.Info("Journey graph file changed outside the server",
				zap.String("path", ev.Path),
				zap.Int("nodes", len(ev.Graph.Nodes)),
				zap.Int("edges", len(ev.Graph.Edges)))
		}
	}
}
