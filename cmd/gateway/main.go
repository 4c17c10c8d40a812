// Package main wires together the media gateway binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/genmedia-gateway/internal/api"
	"github.com/JakeFAU/genmedia-gateway/internal/archive"
	"github.com/JakeFAU/genmedia-gateway/internal/captcha"
	"github.com/JakeFAU/genmedia-gateway/internal/clock/system"
	"github.com/JakeFAU/genmedia-gateway/internal/combine"
	"github.com/JakeFAU/genmedia-gateway/internal/config"
	"github.com/JakeFAU/genmedia-gateway/internal/credential"
	"github.com/JakeFAU/genmedia-gateway/internal/diag"
	"github.com/JakeFAU/genmedia-gateway/internal/dispatch"
	"github.com/JakeFAU/genmedia-gateway/internal/endpoint"
	"github.com/JakeFAU/genmedia-gateway/internal/logging"
	"github.com/JakeFAU/genmedia-gateway/internal/profile"
	"github.com/JakeFAU/genmedia-gateway/internal/relay"
	"github.com/JakeFAU/genmedia-gateway/internal/slot"
	"github.com/JakeFAU/genmedia-gateway/internal/usage"
)

// captchaServices lists the generation services whose calls carry a
// challenge token.
var captchaServices = []string{"image", "video", "avatar"}

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("gateway exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	hub := diag.NewHub(diag.Config{}, diag.NewLogSink(logger), &diag.MetricsSink{})
	defer hub.Close()

	store, closeStore, err := buildProfileStore(ctx, cfg.Profile)
	if err != nil {
		return fmt.Errorf("profile store: %w", err)
	}
	defer closeStore()

	recorder, closeRecorder, err := buildUsageRecorder(ctx, cfg.Usage, logger)
	if err != nil {
		return fmt.Errorf("usage recorder: %w", err)
	}
	defer closeRecorder()

	archiver, closeArchiver, err := buildArchive(ctx, cfg.Archive, logger)
	if err != nil {
		return fmt.Errorf("archive store: %w", err)
	}
	defer closeArchiver()

	solver := captcha.NewHTTPSolver(
		cfg.Captcha.ServiceURL,
		time.Duration(cfg.Captcha.TimeoutSeconds)*time.Second,
	)
	adapter := captcha.NewAdapter(
		solver, store, system.New(),
		cfg.Captcha.SiteKey, cfg.Captcha.RestrictedService, logger,
	)

	resolver := credential.NewResolver(credential.NewMemorySession(), store, logger)
	selector := endpoint.NewSelector(cfg.Endpoints)

	var slots *slot.Client
	if cfg.Slot.Enabled {
		slots = slot.NewClient(
			cfg.Slot.CoordinatorURL,
			time.Duration(cfg.Slot.TimeoutSeconds)*time.Second,
			logger, hub,
		)
	}

	dispatcher := dispatch.New(
		cfg.Provider, captchaServices, adapter, resolver, selector,
		slots, cfg.Slot.CooldownSeconds, recorder, hub, logger,
	)
	mediaRelay := relay.New(cfg.Relay, logger)
	encoder := combine.NewFFmpeg(cfg.Combine.FFmpegPath, logger)
	combiner := combine.New(encoder, cfg.Combine, archiver, hub, logger)

	server := api.NewServer(dispatcher, mediaRelay, combiner, cfg, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func buildProfileStore(ctx context.Context, cfg config.ProfileConfig) (profile.Store, func(), error) {
	switch cfg.Provider {
	case "", "noop":
		return profile.Noop{}, func() {}, nil
	case "memory":
		return profile.NewMemory(), func() {}, nil
	case "postgres":
		pg, err := profile.NewPostgres(ctx, profile.PostgresConfig{
			DSN:     cfg.DSN,
			Account: cfg.Account,
		})
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown profile provider %q", cfg.Provider)
	}
}

func buildUsageRecorder(ctx context.Context, cfg config.UsageConfig, logger *zap.Logger) (usage.Recorder, func(), error) {
	switch cfg.Provider {
	case "", "noop":
		return usage.Noop{}, func() {}, nil
	case "memory":
		return usage.NewMemory(), func() {}, nil
	case "pubsub":
		ps, err := usage.NewPubSub(ctx, cfg.ProjectID, cfg.TopicID, logger)
		if err != nil {
			return nil, nil, err
		}
		return ps, func() { _ = ps.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown usage provider %q", cfg.Provider)
	}
}

func buildArchive(ctx context.Context, cfg config.ArchiveConfig, logger *zap.Logger) (archive.Store, func(), error) {
	switch cfg.Provider {
	case "", "noop":
		return archive.Noop{}, func() {}, nil
	case "memory":
		return archive.NewMemory(), func() {}, nil
	case "local":
		local, err := archive.NewLocal(cfg.BaseDir)
		if err != nil {
			return nil, nil, err
		}
		return local, func() {}, nil
	case "gcs":
		gcs, err := archive.NewGCS(ctx, cfg.GCSBucket, cfg.Prefix, logger)
		if err != nil {
			return nil, nil, err
		}
		return gcs, func() { _ = gcs.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown archive provider %q", cfg.Provider)
	}
}
