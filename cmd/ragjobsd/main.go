// Command ragjobsd runs the RAG job pipeline as an HTTP daemon.
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

	"github.com/joho/godotenv"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/prismrag/ragjobs/httpapi"
	"github.com/prismrag/ragjobs/internal/config"
	"github.com/prismrag/ragjobs/pkg/archive"
	"github.com/prismrag/ragjobs/pkg/core"
	"github.com/prismrag/ragjobs/pkg/registry"
	"github.com/prismrag/ragjobs/pkg/stage"
	"github.com/prismrag/ragjobs/pkg/sweep"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real env vars win either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	db, err := gorm.Open(sqlite.Open(cfg.Archive.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open archive db: %w", err)
	}

	store := archive.NewStore(db)
	if err := store.Migrate(context.Background()); err != nil {
		return fmt.Errorf("migrate archive: %w", err)
	}

	stageCfg := stage.DefaultConfig()
	stageCfg.ChunkSizeBytes = cfg.Jobs.ChunkSizeBytes
	stageCfg.StepInterval = cfg.Jobs.StepInterval

	reg := registry.New(
		registry.WithStageConfig(stageCfg),
		registry.WithRetentionLimit(cfg.Jobs.RetentionLimit),
		registry.WithStageRetries(cfg.Jobs.StageRetries),
		registry.WithLogger(logger),
		registry.WithEvictHook(func(snap core.Snapshot) {
			if err := store.Save(context.Background(), snap); err != nil {
				logger.Error("archive evicted job", "job_id", snap.ID, "error", err)
			}
		}),
	)
	defer reg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := sweep.New(reg,
		sweep.WithSchedule(sweep.Every(cfg.Jobs.SweepInterval)),
		sweep.WithArchive(store),
		sweep.WithPruneAfter(cfg.Archive.PruneAfter),
		sweep.WithLogger(logger),
	)
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("sweeper stopped", "error", err)
		}
	}()

	handler := httpapi.NewHandler(reg,
		httpapi.WithArchive(store),
		httpapi.WithLogger(logger),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "port", cfg.Server.Port, "env", cfg.Server.Env)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
