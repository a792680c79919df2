package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfdocx/internal/bootstrap"
	cfgpkg "github.com/local/pdfdocx/internal/config"
	"github.com/local/pdfdocx/internal/extract"
	logpkg "github.com/local/pdfdocx/internal/logger"
	"github.com/local/pdfdocx/internal/metrics"
	"github.com/local/pdfdocx/internal/orchestrator"
	"github.com/local/pdfdocx/internal/progress"
	"github.com/local/pdfdocx/internal/statuscheck"
	"github.com/local/pdfdocx/internal/storage"
)

func main() {
	// .env is optional outside development.
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	if err := bootstrap.Logging(cfg, false); err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
	}
	defer logpkg.Close()
	metrics.Init()

	ex, err := bootstrap.Pipeline(cfg.Pipeline)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build extraction pipeline")
	}

	checks := statuscheck.Options{Probe: ex.Probe, Backends: bootstrap.Backends(cfg.Pipeline)}

	// Progress store
	var status progress.Store
	if cfg.Progress.RedisURL != "" {
		rs, err := progress.NewRedisStore(cfg.Progress.RedisURL, cfg.Progress.TTL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init redis progress store")
		}
		checks.Redis = rs
		status = rs
	} else {
		status = progress.NewMemoryStore(cfg.Progress.TTL)
	}
	defer status.Close()

	// Result storage
	var (
		results storage.Store
		fetcher orchestrator.Fetcher
	)
	if cfg.Storage.Bucket != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		s3, err := storage.NewS3(ctx, storage.S3Options{
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Password:  cfg.Storage.SealPassword,
		})
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init S3 storage")
		}
		checks.Storage = s3
		results, fetcher = s3, s3
	} else {
		local, err := storage.NewLocal(cfg.Storage.LocalDir)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init local result storage")
		}
		results = local
	}

	if n := orchestrator.CleanupTemps(cfg.Pipeline.TempDir, time.Hour); n > 0 {
		log.Info().Int("removed", n).Msg("cleaned stale work directories")
	}

	orch := orchestrator.New(orchestrator.Dependencies{
		Pipeline: ex.Pipeline,
		Status:   status,
		Results:  results,
		S3:       fetcher,
		HTTP:     &http.Client{Timeout: cfg.Server.FetchTimeout},
		Checker:  statuscheck.New(checks),
		Tuning:   ex.Tuning,
		Defaults: extract.Options{
			Profile:           extract.Profile(cfg.Pipeline.DefaultProfile),
			Languages:         cfg.Pipeline.DefaultLanguages,
			IncludePageBreaks: true,
		},
		Concurrency:    cfg.Worker.Concurrency,
		JobTimeout:     cfg.Worker.JobTimeout,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		ResultPrefix:   cfg.Storage.ResultPrefix,
		TempDir:        cfg.Pipeline.TempDir,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           orch.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Int("concurrency", cfg.Worker.Concurrency).
			Interface("backends", checks.Backends).
			Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	orch.Shutdown(ctx)
	log.Info().Msg("shutdown complete")
}
