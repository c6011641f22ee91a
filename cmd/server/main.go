package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"cscexplorer/internal/catalog"
	"cscexplorer/internal/platform/config"
	"cscexplorer/internal/platform/httpserver"
	"cscexplorer/internal/platform/logger"
	httpmetrics "cscexplorer/internal/platform/metrics"
	"cscexplorer/internal/platform/redis"
	"cscexplorer/internal/scorecard"
	scorecardhandler "cscexplorer/internal/scorecard/handler"
	"cscexplorer/internal/scorecard/store"
	"cscexplorer/internal/search"
	searchadapters "cscexplorer/internal/search/adapters"
	searchhandler "cscexplorer/internal/search/handler"
	searchmetrics "cscexplorer/internal/search/metrics"
	"cscexplorer/internal/source"
	"cscexplorer/internal/source/cache"
	"cscexplorer/internal/source/httpsource"
	httptransport "cscexplorer/internal/transport/http"
)

const (
	catalogInitialWait = 500 * time.Millisecond
	catalogMaxWait     = 30 * time.Second
	directoryTimeout   = 30 * time.Second
	responseSlack      = 15 * time.Second
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	configDir := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("open scorecard store: %w", err)
	}
	defer st.Close()

	scorecardSvc := scorecard.New(st, scorecard.WithLogger(log))
	if err := scorecardSvc.Init(ctx); err != nil {
		return fmt.Errorf("init scorecard service: %w", err)
	}
	log.InfoContext(ctx, "scorecard store ready",
		"driver", cfg.Store.Driver,
		"years", scorecardSvc.Years(),
	)

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	src, loader, err := buildSource(cfg, scorecardSvc, log)
	if err != nil {
		return err
	}
	src, err = wrapCache(cfg, src, redisClient, reg, log)
	if err != nil {
		return err
	}

	cat := catalog.New()
	go func() {
		if err := cat.LoadWithRetry(ctx, loader, catalogInitialWait, catalogMaxWait, log); err != nil {
			log.WarnContext(ctx, "category catalog never loaded", "error", err)
			return
		}
		log.InfoContext(ctx, "category catalog loaded", "categories", len(cat.List()))
	}()

	var directory *catalog.Directory
	if cfg.Search.LoadDirectory {
		dctx, cancel := context.WithTimeout(ctx, directoryTimeout)
		directory, err = catalog.LoadDirectory(dctx, src)
		cancel()
		if err != nil {
			log.WarnContext(ctx, "college directory unavailable, results will not carry locations", "error", err)
		} else {
			log.InfoContext(ctx, "college directory loaded", "colleges", directory.Len())
		}
	}

	sm := searchmetrics.New(reg)
	agg := search.NewAggregator(cat, src,
		search.WithLogger(log),
		search.WithMetrics(sm),
		search.WithDirectory(directory),
		search.WithDataYear(cfg.Search.DataYear),
		search.WithFetchTimeout(cfg.Search.FetchTimeout),
		search.WithMaxConcurrency(cfg.Search.MaxConcurrency),
	)
	sessions := search.NewSessions(agg, search.WithSessionMetrics(sm))
	go pruneSessions(ctx, sessions, cfg.Server.SessionIdleTTL, log)

	health := map[string]httptransport.HealthCheck{
		"store": st.Ping,
	}
	if redisClient != nil {
		health["redis"] = redisClient.Health
	}

	router := httptransport.NewRouter(httptransport.Options{
		Logger:   log,
		Metrics:  httpmetrics.New(reg),
		Gatherer: reg,
		Health:   health,
		Registrars: []httptransport.Registrar{
			scorecardhandler.New(scorecardSvc, log),
			searchhandler.New(cat, sessions, log),
		},
	})

	srv := httpserver.New(cfg.Server.Addr, router,
		httpserver.WithWriteTimeout(cfg.Search.FetchTimeout+responseSlack),
	)
	errCh := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "starting cscexplorer", "addr", cfg.Server.Addr, "source_mode", cfg.Source.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// buildSource returns the dataset source for searches and the loader for the
// category catalog, both backed by the same origin.
func buildSource(cfg config.Config, svc *scorecard.Service, log *slog.Logger) (source.DataSource, catalog.Loader, error) {
	switch cfg.Source.Mode {
	case "local":
		return searchadapters.NewScorecardSource(svc), svc, nil
	case "http":
		client := httpsource.New(cfg.Source.BaseURL,
			httpsource.WithTimeout(cfg.Source.Timeout),
			httpsource.WithRateLimit(cfg.Source.RateLimit, cfg.Source.Burst),
			httpsource.WithLogger(log),
		)
		return client, client, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownSourceMode, cfg.Source.Mode)
	}
}

func wrapCache(cfg config.Config, src source.DataSource, rc *redis.Client, reg prometheus.Registerer, log *slog.Logger) (source.DataSource, error) {
	var st cache.Store
	switch cfg.Cache.Backend {
	case "none":
		return src, nil
	case "memory":
		st = cache.NewMemoryStore()
	case "redis":
		if rc == nil {
			return nil, errors.New("cache backend redis requires redis.url")
		}
		st = cache.NewRedisStore(rc.Client)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownCache, cfg.Cache.Backend)
	}
	return cache.New(src, st, cfg.Cache.TTL,
		cache.WithLogger(log),
		cache.WithMetrics(cache.NewMetrics(reg)),
		cache.WithFetchTimeout(cfg.Search.FetchTimeout),
	), nil
}

func pruneSessions(ctx context.Context, sessions *search.Sessions, idle time.Duration, log *slog.Logger) {
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Prune(idle); n > 0 {
				log.DebugContext(ctx, "pruned idle sessions", "removed", n, "remaining", sessions.Len())
			}
		}
	}
}
