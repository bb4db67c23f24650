package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"migraine-sense/internal/catalog"
	"migraine-sense/internal/cfg"
	"migraine-sense/internal/metrics"
	"migraine-sense/internal/ml"
	"migraine-sense/internal/storage"
	"migraine-sense/internal/web"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const serverShutdownWait = 10 * time.Second

var serveCmd = &cli.Command{
	Name:    "serve",
	Aliases: []string{"s"},
	Usage:   "Load the model artifacts and start the web server",
	Action:  cmdServe,
}

func cmdServe(ctx context.Context, cmd *cli.Command) error {
	c, err := cfg.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	setupLogging(c.LogLevel, c.LogFormat)

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	pipeline, err := ml.LoadPipeline(c.ArtifactsDir, ml.WithMetrics(mw))
	if err != nil {
		return fmt.Errorf("failed to load model artifacts: %w", err)
	}

	cat, err := catalog.Load(c.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	if missing := cat.Missing(pipeline.Labels()); len(missing) > 0 {
		log.Warn().Strs("labels", missing).Msg("decoder labels without catalog entries, fallback info will be shown")
	}

	opts := []web.Option{web.WithMetrics(mw)}
	if store := initializeStorage(c); store != nil {
		defer store.Close()
		opts = append(opts, web.WithHistory(store))
	}

	srv := web.NewServer(pipeline, cat, web.Config{
		ListenPort:   c.ListenPort,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		HistoryLimit: c.HistoryLimit,
	}, opts...)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("web server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownWait)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
		}
		return nil
	})

	return g.Wait()
}

// initializeStorage opens prediction history if DATA_PATH is configured.
func initializeStorage(c cfg.Settings) *storage.Store {
	if !c.HistoryEnabled() {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without history")
		return nil
	}
	return store
}
