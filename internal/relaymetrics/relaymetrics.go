// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package relaymetrics records per-request latency, time-to-first-byte,
// and token-usage metrics via OpenTelemetry, following the shape of the
// teacher's internal/metrics package but scoped to a single relayed
// request rather than an Envoy filter chain phase.
package relaymetrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder is constructed once per request via Factory.NewRecorder and
// records that single request's lifecycle. It is not safe for concurrent
// use from more than one goroutine, matching the "one handler task per
// inbound request" concurrency model.
type Recorder struct {
	requestDuration metric.Float64Histogram
	ttfb            metric.Float64Histogram
	tokenCounter    metric.Int64Counter

	start          time.Time
	firstByteSent  bool
	account, model string
}

// Factory builds Recorders sharing the same underlying instruments.
type Factory struct {
	requestDuration metric.Float64Histogram
	ttfb            metric.Float64Histogram
	tokenCounter    metric.Int64Counter
}

// NewFactory creates the OpenTelemetry instruments used for every relayed
// request. meter is expected to come from a MeterProvider constructed the
// way the teacher's metrics.NewMeterFromEnv builds one.
func NewFactory(meter metric.Meter) (*Factory, error) {
	requestDuration, err := meter.Float64Histogram(
		"relay.request.duration",
		metric.WithDescription("End-to-end duration of a relayed request, in seconds."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	ttfb, err := meter.Float64Histogram(
		"relay.request.time_to_first_byte",
		metric.WithDescription("Time from request start to the first streamed byte, in seconds."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	tokenCounter, err := meter.Int64Counter(
		"relay.tokens",
		metric.WithDescription("Tokens consumed per relayed request, by kind."),
	)
	if err != nil {
		return nil, err
	}
	return &Factory{requestDuration: requestDuration, ttfb: ttfb, tokenCounter: tokenCounter}, nil
}

// NewRecorder starts timing a new request against account and model.
func (f *Factory) NewRecorder(account, model string) *Recorder {
	return &Recorder{
		requestDuration: f.requestDuration,
		ttfb:            f.ttfb,
		tokenCounter:    f.tokenCounter,
		start:           time.Now(),
		account:         account,
		model:           model,
	}
}

func (r *Recorder) attrs(extra ...attribute.KeyValue) attribute.Set {
	base := []attribute.KeyValue{
		attribute.String("account", r.account),
		attribute.String("model", r.model),
	}
	return attribute.NewSet(append(base, extra...)...)
}

// RecordFirstByte records the time-to-first-byte, once, the first time a
// streaming response emits its first chunk. Later calls are no-ops.
func (r *Recorder) RecordFirstByte(ctx context.Context) {
	if r.firstByteSent {
		return
	}
	r.firstByteSent = true
	set := r.attrs()
	r.ttfb.Record(ctx, time.Since(r.start).Seconds(), metric.WithAttributeSet(set))
}

// RecordTokens records the input/output/cached token counts for the
// request. It is safe to call once per request after usage is known.
func (r *Recorder) RecordTokens(ctx context.Context, inputTokens, outputTokens, cachedTokens int64) {
	if inputTokens > 0 {
		r.tokenCounter.Add(ctx, inputTokens, metric.WithAttributeSet(r.attrs(attribute.String("kind", "input"))))
	}
	if outputTokens > 0 {
		r.tokenCounter.Add(ctx, outputTokens, metric.WithAttributeSet(r.attrs(attribute.String("kind", "output"))))
	}
	if cachedTokens > 0 {
		r.tokenCounter.Add(ctx, cachedTokens, metric.WithAttributeSet(r.attrs(attribute.String("kind", "cached"))))
	}
}

// RecordCompletion records the total request duration and whether it
// completed successfully.
func (r *Recorder) RecordCompletion(ctx context.Context, success bool) {
	set := r.attrs(attribute.Bool("success", success))
	r.requestDuration.Record(ctx, time.Since(r.start).Seconds(), metric.WithAttributeSet(set))
}
