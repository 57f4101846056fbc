package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/premium-quote/internal/application"
	"github.com/eugenenazirov/premium-quote/internal/config"
	"github.com/eugenenazirov/premium-quote/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	kingpinApp := kingpin.New("premium-quote", "Motor insurance premium quote service")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	envFile := kingpinApp.Flag("env-file", "Path to a .env file loaded before reading the environment").String()
	port := kingpinApp.Flag("port", "HTTP port exposed by the service").String()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()
	databaseDriver := kingpinApp.Flag("database-driver", "Applicant storage backend").Enum("memory", "postgres", "sqlite")
	databaseDSN := kingpinApp.Flag("database-dsn", "Connection string or file path for the applicant storage").String()
	redisAddr := kingpinApp.Flag("redis-addr", "Redis address used to cache premiums").String()
	rateLimitRPSFlag := kingpinApp.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := kingpinApp.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
		EnvFile:    *envFile,
	}

	if *port != "" {
		overrides.Port = port
	}

	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}

	if *databaseDriver != "" {
		overrides.DatabaseDriver = databaseDriver
	}

	if *databaseDSN != "" {
		overrides.DatabaseDSN = databaseDSN
	}

	if *redisAddr != "" {
		overrides.RedisAddr = redisAddr
	}

	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}

	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	serveUntilSignal(app, cfg.ShutdownGracePeriod, logger)
}

// lifecycle is the part of application.App that main drives after start.
type lifecycle interface {
	Server() *http.Server
	Close() error
}

// serveUntilSignal blocks until a termination signal, drains the HTTP server
// and then releases the storage and cache connections.
func serveUntilSignal(app lifecycle, timeout time.Duration, logger *zap.Logger) {
	shutdown(app.Server(), timeout, logger)

	if err := app.Close(); err != nil {
		logger.Warn("failed to release resources", zap.Error(err))
		return
	}
	logger.Info("resources released")
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
