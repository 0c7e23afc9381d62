// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package metrics configures the OpenTelemetry MeterProvider the relay's
// own internal/relaymetrics package records instruments against.
package metrics

import (
	"context"
	"os"

	"go.opentelemetry.io/contrib/exporters/autoexport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// NewMeterFromEnv configures an OpenTelemetry MeterProvider based on environment variables,
// always incorporating the provided Prometheus reader. It optionally adds an autoexport-selected
// exporter (console, otlp, ...) on top, controlled by the same environment variables autoexport
// itself recognizes. The function returns a metric.Meter for instrumentation and a shutdown
// function to gracefully close the provider.
//
// Environment variables checked directly include:
//   - OTEL_SDK_DISABLED: If "true", disables every exporter except the Prometheus reader.
//   - OTEL_METRICS_EXPORTER: Supported values are "none", "console", "prometheus", "otlp".
//
// Prometheus is always enabled via the provided promReader; other exporters are added conditionally.
func NewMeterFromEnv(ctx context.Context, promReader sdkmetric.Reader) (metric.Meter, func(context.Context) error, error) {
	var options []sdkmetric.Option
	options = append(options, sdkmetric.WithReader(promReader))

	if os.Getenv("OTEL_SDK_DISABLED") != "true" && os.Getenv("OTEL_METRICS_EXPORTER") != "none" && os.Getenv("OTEL_METRICS_EXPORTER") != "prometheus" {
		defaultRes := resource.Default()
		envRes, err := resource.New(ctx,
			resource.WithFromEnv(),
			resource.WithTelemetrySDK(),
		)
		if err != nil {
			return nil, nil, err
		}
		fallbackRes := resource.NewSchemaless(
			attribute.String("service.name", "relaygateway"),
		)
		res, err := resource.Merge(defaultRes, fallbackRes)
		if err != nil {
			return nil, nil, err
		}
		res, err = resource.Merge(res, envRes)
		if err != nil {
			return nil, nil, err
		}
		options = append(options, sdkmetric.WithResource(res))

		otelReader, err := autoexport.NewMetricReader(ctx)
		if err != nil {
			return nil, nil, err
		}
		options = append(options, sdkmetric.WithReader(otelReader))
	}

	mp := sdkmetric.NewMeterProvider(options...)
	return mp.Meter("relaygateway"), mp.Shutdown, nil
}
