// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Command relayd serves the LLM relay and translation gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/exporters/prometheus"

	"github.com/envoyproxy/ai-gateway/internal/account"
	"github.com/envoyproxy/ai-gateway/internal/config"
	"github.com/envoyproxy/ai-gateway/internal/metrics"
	"github.com/envoyproxy/ai-gateway/internal/relay"
	"github.com/envoyproxy/ai-gateway/internal/relaymetrics"
	"github.com/envoyproxy/ai-gateway/internal/translate"
	"github.com/envoyproxy/ai-gateway/internal/translationcache"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the relay's YAML configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(*configPath, logger); err != nil {
		logger.Error("relayd exited with error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver := account.NewStaticResolver(cfg.Accounts, nil)
	recorder := account.LogRecorder{
		Log: func(accountID, apiKeyID string, u account.Usage, cost float64) {
			logger.Info("usage recorded",
				"account", accountID, "apiKey", apiKeyID, "model", u.Model,
				"inputTokens", u.InputTokens, "outputTokens", u.OutputTokens, "cost", cost)
		},
	}

	var translateSvc *translate.Service
	if cfg.Translation.Enabled {
		cache := translationcache.New(cfg.Translation.CacheSize, cfg.CacheTTL())
		translateSvc = translate.NewService(resolver, cfg.Translation.AccountID, cfg.Translation.Model, cfg.Translation.MaxTokens, cache, logger)
	}

	metricsFactory, shutdownMetrics, err := newMetricsFactory(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			logger.Warn("metrics shutdown failed", "error", err)
		}
	}()

	core := relay.NewCore(resolver, recorder, account.ZeroCostCalculator{}, relay.NopScheduler{}, translateSvc, metricsFactory, logger, relay.Config{
		RequestTimeout: cfg.RequestTimeout(),
	})

	server := relay.NewServer(cfg.ListenAddr, core, logger)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("relayd listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serveErr:
		return err
	}
}

// newMetricsFactory builds the relay's OpenTelemetry meter the same way
// the teacher's internal/metrics.NewMeterFromEnv does, always registering
// a Prometheus reader and optionally an OTLP/console exporter depending on
// the environment.
func newMetricsFactory(ctx context.Context) (*relaymetrics.Factory, func(context.Context) error, error) {
	promReader, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}
	meter, shutdown, err := metrics.NewMeterFromEnv(ctx, promReader)
	if err != nil {
		return nil, nil, err
	}
	factory, err := relaymetrics.NewFactory(meter)
	if err != nil {
		return nil, shutdown, err
	}
	return factory, shutdown, nil
}
