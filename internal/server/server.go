// Package server exposes the discovery engine over HTTP and hosts the
// periodic refresh scheduler.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/procurehq/supplierscope/config"
	"github.com/procurehq/supplierscope/internal/discovery"
	"github.com/procurehq/supplierscope/internal/discovery/adapters"
	"github.com/procurehq/supplierscope/internal/discovery/cache"
	"github.com/procurehq/supplierscope/internal/discovery/engine"
	"github.com/procurehq/supplierscope/internal/telemetry"
	"github.com/procurehq/supplierscope/tools/web_fetch"
	"github.com/procurehq/supplierscope/tools/web_search"
)

// Run wires the full pipeline and serves it until the listener fails.
func Run(cfg *config.Config, addr string) error {
	eng, store, err := BuildEngine(context.Background(), cfg)
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		if err := eng.HealthCheck(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		}
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	dh := &DiscoveryHandler{Engine: eng}
	dh.Register(e.Group("/api"))

	if cfg.Server.Scheduler.Enabled {
		var rdb *redis.Client
		if cfg.Storage.CacheBackend == "redis" {
			rdb, err = cache.Conn(context.Background(), cfg.Storage.Redis.Host, cfg.Storage.Redis.Port,
				cfg.Storage.Redis.Password, cfg.Storage.Redis.DB, cfg.Storage.Redis.Timeout)
			if err != nil {
				return fmt.Errorf("scheduler redis connection: %w", err)
			}
		}
		sched := &Scheduler{
			Engine: eng,
			Store:  store,
			Cfg:    cfg.Server.Scheduler,
			Rdb:    rdb,
			Stop:   make(chan struct{}),
		}
		sched.Start()
		defer sched.Shutdown()
	}

	if addr == "" {
		addr = cfg.Server.Address
	}
	if addr == "" {
		addr = ":10030"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// BuildEngine assembles cache, search backend, fetchers and adapters from
// the configuration.
func BuildEngine(ctx context.Context, cfg *config.Config) (*engine.Engine, cache.Store, error) {
	var store cache.Store
	switch cfg.Storage.CacheBackend {
	case "redis":
		client, err := cache.Conn(ctx, cfg.Storage.Redis.Host, cfg.Storage.Redis.Port,
			cfg.Storage.Redis.Password, cfg.Storage.Redis.DB, cfg.Storage.Redis.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("redis connection failed (%s:%s): %w", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port, err)
		}
		store = cache.NewRedisStore(client, cfg.Discovery.CacheTTL)
	default:
		store = cache.NewMemoryStore(cfg.Discovery.CacheTTL, cfg.Discovery.CacheMaxEntries)
	}

	provider := web_search.Provider(cfg.Search.Provider)
	apiKey := cfg.Search.SerperAPIKey
	if provider == web_search.BraveProvider {
		apiKey = cfg.Search.BraveAPIKey
	}
	searcher, err := web_search.NewWebSearcher(provider, apiKey)
	if err != nil {
		return nil, nil, fmt.Errorf("search provider %q: %w", cfg.Search.Provider, err)
	}

	plain, err := web_fetch.NewWebFetcher(web_fetch.HTTPFetcherType, web_fetch.Options{
		Timeout:   cfg.Fetch.Timeout,
		MaxChars:  int(cfg.Fetch.MaxBodyBytes),
		UserAgent: cfg.Fetch.UserAgent,
		Retries:   cfg.Fetch.Retries,
		Backoff:   cfg.Fetch.Backoff,
	})
	if err != nil {
		return nil, nil, err
	}
	renderer, err := web_fetch.NewWebFetcher(web_fetch.ChromedpFetcherType, web_fetch.Options{
		Timeout:   cfg.Fetch.RenderTimeout,
		MaxChars:  int(cfg.Fetch.MaxBodyBytes),
		UserAgent: cfg.Fetch.UserAgent,
	})
	if err != nil {
		return nil, nil, err
	}

	adapterList := []adapters.Adapter{
		adapters.NewWebSearchAdapter(searcher, cfg.Search.MaxResults),
		adapters.NewStaticPageAdapter(plain, cfg.Fetch.MaxParallel, cfg.Fetch.Timeout),
		adapters.NewRenderedPageAdapter(plain, renderer, cfg.Fetch.RenderTimeout),
	}
	for _, dir := range cfg.Directories {
		adapterList = append(adapterList, adapters.NewDirectoryAdapter(dir, plain, cfg.Fetch.Timeout))
	}

	tel := telemetry.NewTelemetry(cfg.Telemetry)
	eng, err := engine.New(cfg, store, adapterList, tel)
	if err != nil {
		return nil, nil, err
	}
	return eng, store, nil
}

// httpStatus maps pipeline errors onto HTTP status codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, discovery.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, discovery.ErrNoDataFound):
		return http.StatusNotFound
	case errors.Is(err, discovery.ErrLowConfidence):
		return http.StatusUnprocessableEntity
	case errors.Is(err, discovery.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
