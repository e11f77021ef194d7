// File: cmd/worker/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ai-agent-backend/internal/application"
	"ai-agent-backend/internal/config"
	"ai-agent-backend/internal/infra/logging"
	"ai-agent-backend/internal/infra/metrics"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	metricsPort := flag.Int("metrics-port", 9101, "port for /metrics and /health; 0 disables")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Dispatch.Mode != config.DispatchRedis {
		log.Fatalf("worker requires dispatch.mode=%s (got %q)", config.DispatchRedis, cfg.Dispatch.Mode)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, application.RoleWorker)

	app, err := application.New(ctx, cfg, application.RoleWorker, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer app.Close()

	consumer, err := app.Consumer()
	if err != nil {
		logger.Fatal().Err(err).Msg("consumer")
	}

	if *metricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})
		srv := &http.Server{Addr: fmt.Sprintf(":%d", *metricsPort), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server error")
			}
		}()
		defer srv.Close()
	}

	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
		cancel()
		if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn().Err(err).Msg("consumer stopped")
		}
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped")
		}
	}
}
