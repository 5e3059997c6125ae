// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package main is the entry point for the pagescore service.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/olegiv/pagescore/internal/cache"
	"github.com/olegiv/pagescore/internal/config"
	"github.com/olegiv/pagescore/internal/handler"
	"github.com/olegiv/pagescore/internal/handler/api"
	"github.com/olegiv/pagescore/internal/legacy"
	"github.com/olegiv/pagescore/internal/logging"
	"github.com/olegiv/pagescore/internal/metrics"
	"github.com/olegiv/pagescore/internal/middleware"
	"github.com/olegiv/pagescore/internal/model"
	"github.com/olegiv/pagescore/internal/page"
	"github.com/olegiv/pagescore/internal/scheduler"
	"github.com/olegiv/pagescore/internal/service"
	"github.com/olegiv/pagescore/internal/staticcache"
	"github.com/olegiv/pagescore/internal/store"
	"github.com/olegiv/pagescore/internal/version"
)

// Build-time variables injected via ldflags
var (
	appVersion   = "dev"
	appGitCommit = ""
	appBuildTime = "unknown"
)

const (
	siteName        = "pagescore"
	shutdownTimeout = 30 * time.Second
)

type options struct {
	createAPIKey    string
	importLegacy    bool
	importDryRun    bool
	autopublishOnce bool
}

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")

	var opts options
	flag.StringVar(&opts.createAPIKey, "create-api-key", "", "Create an API key with the given name and all permissions, print it and exit")
	flag.BoolVar(&opts.importLegacy, "import-legacy", false, "Import pages from the legacy MySQL database in PAGES_LEGACY_DSN and exit")
	flag.BoolVar(&opts.importDryRun, "dry-run", false, "With -import-legacy, report what would be imported without writing")
	flag.BoolVar(&opts.autopublishOnce, "autopublish-once", false, "Release every due autopublish page and exit")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "pagescore - page publishing and hierarchy service\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PAGES_DB_PATH                SQLite database path (default: ./data/pages.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PAGES_SERVER_PORT            Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PAGES_ENV                    Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PAGES_REDIS_URL              Redis URL for a shared static cache (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PAGES_AUTOPUBLISH_FUZZINESS  Autopublish release window (default: 2m)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PAGES_LEGACY_DSN             Legacy MySQL DSN for -import-legacy\n")
	}

	flag.Parse()

	info := version.New(appVersion, appGitCommit, appBuildTime)
	if *showVersion {
		_, _ = fmt.Println(info.String())
		os.Exit(0)
	}

	if err := run(info, opts); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(info version.Info, opts options) error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	baseHandler, logCloser := logging.NewHandler(logging.Options{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		File:        cfg.LogFile,
	})
	defer closeQuietly(logCloser)
	logger := slog.New(baseHandler)
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	logger.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			logger.Error("error closing database connection", "error", err)
		}
	}(db)

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// WARN and ERROR records also go to the event log
	logger = slog.New(logging.NewEventLogHandler(baseHandler, db))
	slog.SetDefault(logger)

	ctx := context.Background()
	if cfg.DoSeed {
		if err := store.Seed(ctx, db); err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}
	}

	if opts.createAPIKey != "" {
		return createAPIKey(ctx, db, opts.createAPIKey)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	pages := page.NewService(db, logger, page.Options{
		MaxRetries: cfg.MaxRetries,
		Fuzziness:  cfg.AutopublishFuzziness,
		Metrics:    m,
	})

	byteCache := cache.New(cache.Config{
		RedisURL:        cfg.RedisURL,
		Prefix:          cfg.CachePrefix,
		DefaultTTL:      cfg.CacheTTL,
		MaxSize:         cfg.CacheMaxSize,
		CleanupInterval: time.Minute,
	}, logger)
	defer closeQuietly(byteCache)
	staticCache := staticcache.NewHandler(byteCache, cfg.CacheTTL, logger, m)

	if opts.importLegacy {
		return importLegacy(ctx, cfg, db, staticCache, logger, opts.importDryRun)
	}
	if opts.autopublishOnce {
		return autopublishOnce(ctx, pages, staticCache, logger)
	}

	sweepCfg := staticcache.DefaultSweepConfig()
	sweepCfg.Interval = cfg.SweepInterval
	sweepCfg.MaxWait = cfg.SweepMaxWait
	sweeper := staticcache.NewSweeper(staticCache, sweepCfg, logger, m)

	queue := scheduler.NewQueue(logger, m)
	events := service.NewEventService(db, logger)
	effects := service.NewEffectRunner(pages, queue, sweeper, events, logger)

	sched := scheduler.New(db, logger)
	for _, job := range []scheduler.Job{
		service.AutopublishJob(pages, effects, cfg.AutopublishSchedule, logger),
		service.CacheSweepJob(staticCache, events, m, ""),
		service.EventPruneJob(events, service.DefaultEventRetention, "", logger),
	} {
		if err := sched.Add(job); err != nil {
			return fmt.Errorf("registering job %s: %w", job.Name, err)
		}
	}

	renderer, err := handler.NewRenderer()
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	frontendHandler := handler.NewFrontendHandler(pages, renderer, siteName, logger)
	healthHandler := handler.NewHealthHandler(db, byteCache, info.Version)
	apiHandler := api.NewHandler(api.Deps{
		Pages:   pages,
		Effects: effects,
		Events:  events,
		Jobs:    sched.Registry(),
		Cache:   staticCache,
		Metrics: m,
		Version: info.Version,
		Logger:  logger,
	})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics(m))
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))

	r.Group(func(r chi.Router) {
		r.Use(middleware.PageCache(staticCache, logger))
		r.Get("/", frontendHandler.Home)
		r.Get("/p/{param}", frontendHandler.Page)
	})

	globalLimiter := middleware.NewGlobalRateLimiter(100, 200)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(globalLimiter.Middleware())
		r.Mount("/", apiHandler.Routes(
			middleware.APIKeyAuth(db, logger),
			middleware.APIRateLimit(cfg.APIRateLimit, cfg.APIRateBurst),
		))
	})

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	r.NotFound(frontendHandler.NotFound)

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", info.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		// Stop producers before the sweeper so the last sweep covers every save.
		sched.Stop()
		queue.Stop()
		sweeper.Stop()

		if err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func createAPIKey(ctx context.Context, db *sql.DB, name string) error {
	rawKey, prefix, err := model.GenerateAPIKey()
	if err != nil {
		return fmt.Errorf("generating api key: %w", err)
	}
	key, err := store.New(db).CreateAPIKey(ctx, store.CreateAPIKeyParams{
		Name:        strings.TrimSpace(name),
		KeyHash:     model.HashAPIKey(rawKey),
		KeyPrefix:   prefix,
		Permissions: model.PermissionsToJSON(model.AllPermissions()),
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("creating api key: %w", err)
	}
	_, _ = fmt.Printf("API key %q (id %d) created. Store it now, it is not shown again:\n%s\n", key.Name, key.ID, rawKey)
	return nil
}

func importLegacy(ctx context.Context, cfg *config.Config, db *sql.DB, sc *staticcache.Handler, logger *slog.Logger, dryRun bool) error {
	if cfg.LegacyDSN == "" {
		return errors.New("PAGES_LEGACY_DSN is not set")
	}
	reader, err := legacy.NewReader(ctx, cfg.LegacyDSN)
	if err != nil {
		return fmt.Errorf("connecting to legacy database: %w", err)
	}
	defer closeQuietly(reader)

	res, effects, err := legacy.NewImporter(db, logger).Import(ctx, reader, legacy.Options{
		Language: cfg.LegacyLanguage,
		DryRun:   dryRun,
	})
	if err != nil {
		return fmt.Errorf("importing legacy pages: %w", err)
	}
	for _, w := range res.Warnings {
		logger.Warn("legacy import", "warning", w)
	}
	logger.Info("legacy import finished",
		"read", res.Read, "imported", res.Imported, "warnings", len(res.Warnings), "dry_run", dryRun)

	// Future pages are picked up by the periodic autopublish sweep of the server.
	if effects.HasSweep() {
		if _, err := sc.SweepNow(ctx); err != nil {
			return fmt.Errorf("sweeping static cache: %w", err)
		}
	}
	return nil
}

func autopublishOnce(ctx context.Context, pages *page.Service, sc *staticcache.Handler, logger *slog.Logger) error {
	res, effects, err := pages.SweepAutopublish(ctx)
	if err != nil {
		logger.Error("autopublish sweep incomplete", "error", err, "count", len(res.Cleared))
	}
	if effects.HasSweep() {
		if _, serr := sc.SweepNow(ctx); serr != nil {
			err = errors.Join(err, fmt.Errorf("sweeping static cache: %w", serr))
		}
	}
	logger.Info("autopublish sweep finished", "scanned", res.Scanned, "count", len(res.Cleared))
	return err
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
