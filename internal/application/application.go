package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/eugenenazirov/premium-quote/internal/api"
	"github.com/eugenenazirov/premium-quote/internal/cache"
	"github.com/eugenenazirov/premium-quote/internal/config"
	"github.com/eugenenazirov/premium-quote/internal/premium"
	"github.com/eugenenazirov/premium-quote/internal/quote"
	"github.com/eugenenazirov/premium-quote/internal/storage"
)

const redisPingTimeout = 2 * time.Second

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage    storage.Storage
	cache      cache.Cache
	calculator premium.Calculator
	quotes     *quote.Service
	handler    *api.Handler
	router     http.Handler
	logger     *zap.Logger
	server     *http.Server
	closers    []func() error
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	store, err := storage.Open(storage.Options{
		Driver:      cfg.Database.Driver,
		DSN:         cfg.Database.DSN,
		AutoMigrate: cfg.Database.AutoMigrate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Database.Driver, err)
	}
	closers := []func() error{store.Close}

	quoteCache, closeCache := newCache(cfg.Cache, logger)
	if closeCache != nil {
		closers = append(closers, closeCache)
	}

	calc := premium.New(premium.WithLogger(logger))
	svc := quote.NewService(calc, store,
		quote.WithCache(quoteCache),
		quote.WithLogger(logger),
	)
	handler := api.NewHandler(svc, api.WithHandlerLogger(logger))
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	rootHandler, err := BuildRootHandler(apiRouter)
	if err != nil {
		closeAll(closers)
		return nil, fmt.Errorf("failed to build HTTP handler: %w", err)
	}

	logger.Info("application initialised",
		zap.String("storage", cfg.Database.Driver),
		zap.Bool("redis_cache", cfg.Cache.RedisAddr != "" && closeCache != nil),
	)

	return &App{
		storage:    store,
		cache:      quoteCache,
		calculator: calc,
		quotes:     svc,
		handler:    handler,
		router:     apiRouter,
		logger:     logger,
		server:     NewServer(cfg, rootHandler),
		closers:    closers,
	}, nil
}

// newCache prefers Redis when configured and reachable, otherwise an in-process cache.
func newCache(cfg config.CacheConfig, logger *zap.Logger) (cache.Cache, func() error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(cache.WithTTL(cfg.TTL)), nil
	}

	redisCache := cache.NewRedisCache(cfg.RedisAddr, cfg.TTL)
	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := redisCache.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, falling back to in-memory premium cache",
			zap.String("addr", cfg.RedisAddr),
			zap.Error(err),
		)
		_ = redisCache.Close()
		return cache.NewMemoryCache(cache.WithTTL(cfg.TTL)), nil
	}
	return redisCache, redisCache.Close
}

// BuildRootHandler constructs the root HTTP handler that serves pages and static files and routes API requests.
func BuildRootHandler(apiHandler http.Handler) (http.Handler, error) {
	staticPath, err := resolveProjectPath(filepath.Join("web", "static"))
	if err != nil {
		return nil, err
	}
	indexPath, err := resolveProjectPath(filepath.Join("web", "templates", "index.html"))
	if err != nil {
		return nil, err
	}
	simulatorPath, err := resolveProjectPath(filepath.Join("web", "templates", "simulateur.html"))
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(staticPath))))
	r.PathPrefix("/api/").Handler(apiHandler)
	r.Path("/calcul_prime").Handler(apiHandler)
	r.Path("/").Methods(http.MethodGet, http.MethodHead).Handler(servePage(indexPath))
	r.Path("/simulateur").Methods(http.MethodGet, http.MethodHead).Handler(servePage(simulatorPath))

	return r, nil
}

func servePage(path string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, path)
	})
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Close releases the storage and cache connections. Call it after the server has shut down.
func (a *App) Close() error {
	return closeAll(a.closers)
}

func closeAll(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// resolveProjectPath locates a file or directory relative to the project root by walking up the directory tree.
func resolveProjectPath(relative string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, relative)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("unable to locate %s", relative)
}
