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

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/bryanwahyu/csvask/internal/application"
	apprelay "github.com/bryanwahyu/csvask/internal/application/relay"
	"github.com/bryanwahyu/csvask/internal/config"
	"github.com/bryanwahyu/csvask/internal/domain/relay"
	"github.com/bryanwahyu/csvask/internal/infra/ai/openai"
	"github.com/bryanwahyu/csvask/internal/infra/httpserver"
	"github.com/bryanwahyu/csvask/internal/infra/storage"
	"github.com/bryanwahyu/csvask/internal/infra/webhook"
	"github.com/bryanwahyu/csvask/internal/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env", "error", err)
	}

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("config load error", "path", path, "error", err)
		os.Exit(1)
	}
	log := cfg.Logger()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := newCatalog(ctx, cfg)
	if err != nil {
		log.Error("catalog init error", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}

	analyzer, err := newAnalyzer(cfg)
	if err != nil {
		log.Error("analyzer init error", "driver", cfg.Analyzer.Driver, "error", err)
		os.Exit(1)
	}

	svc := &apprelay.Service{
		Catalog:      catalog,
		Analyzer:     analyzer,
		Clock:        application.SystemClock{},
		Log:          log.With("component", "relay"),
		MaxFileBytes: cfg.Storage.MaxFileBytes,
	}

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimit.Capacity > 0 {
		limiter = middleware.NewRateLimiter(ctx, cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillPerSecond)
	}

	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(svc, httpserver.Options{
		Logger:         log,
		RateLimiter:    limiter,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Checkers: map[string]middleware.HealthChecker{
			"catalog": &middleware.CatalogHealthChecker{Catalog: catalog},
		},
	}))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("server listening", "addr", addr,
			"storage", cfg.Storage.Driver, "analyzer", cfg.Analyzer.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}

func newCatalog(ctx context.Context, cfg *config.Config) (relay.Catalog, error) {
	switch cfg.Storage.Driver {
	case config.DriverMinio:
		cat, err := storage.NewMinioCatalog(ctx, storage.MinioOptions{
			Endpoint:  cfg.Minio.Endpoint,
			Region:    cfg.Minio.Region,
			Bucket:    cfg.Minio.BucketName,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			UseSSL:    cfg.Minio.UseSSL,
			Prefix:    cfg.Minio.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return cat, nil
	default:
		cat, err := storage.NewLocalCatalog(cfg.Storage.BaseDir)
		if err != nil {
			return nil, err
		}
		return cat, nil
	}
}

func newAnalyzer(cfg *config.Config) (relay.Analyzer, error) {
	switch cfg.Analyzer.Driver {
	case config.DriverOpenAI:
		client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
		client.MaxCSVBytes = cfg.OpenAI.MaxCSVBytes
		return client, nil
	default:
		client, err := webhook.New(webhook.Config{
			URL:              cfg.Webhook.URL,
			Timeout:          cfg.Webhook.Timeout,
			MaxResponseBytes: cfg.Webhook.MaxResponseBytes,
			UserAgent:        "csvask/1.0",
			RequestIDHeader:  middleware.RequestIDHeader,
			RequestID:        middleware.GetRequestID,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
