package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mockstocks/mockstocks/internal/config"
	"github.com/mockstocks/mockstocks/internal/engine"
	"github.com/mockstocks/mockstocks/internal/handler"
	"github.com/mockstocks/mockstocks/internal/ledger"
	"github.com/mockstocks/mockstocks/internal/metrics"
	"github.com/mockstocks/mockstocks/internal/oracle"
	"github.com/mockstocks/mockstocks/internal/persist"
	"github.com/mockstocks/mockstocks/internal/service"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load .env if present, then configuration from the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Durable storage. An empty DATABASE_PATH runs fully in memory.
	var durable persist.Store
	if cfg.DatabasePath != "" {
		durable, err = persist.NewSQLite(cfg.DatabasePath)
		if err != nil {
			logger.Error("failed to open database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer durable.Close()
		logger.Info("database opened", slog.String("path", cfg.DatabasePath))
	} else {
		logger.Warn("running without durable storage")
	}

	// Ledger (restores the persisted snapshot, if any).
	l, err := ledger.New(context.Background(), durable)
	if err != nil {
		logger.Error("failed to load ledger", slog.String("error", err.Error()))
		os.Exit(1)
	}
	metrics.OpenOffers.Set(float64(l.Offers().Len()))

	// Price oracle. An empty ORACLE_URL serves the built-in static table.
	var quotes oracle.Client
	if cfg.OracleURL != "" {
		quotes = oracle.NewHTTPClient(cfg.OracleURL, cfg.OracleTimeout)
		logger.Info("using HTTP price oracle", slog.String("url", cfg.OracleURL))
	} else {
		quotes = oracle.NewStatic()
		logger.Warn("using built-in static price oracle")
	}

	// Engines.
	exec := engine.NewExecutor(l)
	p2p := engine.NewP2P(l)

	// Services.
	accountSvc := service.NewAccountService(l, quotes, cfg.InitialCash)
	tradeSvc := service.NewTradeService(exec, quotes)
	offerSvc := service.NewOfferService(p2p, l, quotes)

	// Router.
	router := handler.NewRouter(accountSvc, tradeSvc, offerSvc, logger)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}
