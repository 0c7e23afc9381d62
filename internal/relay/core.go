// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package relay is C10 and C11: the per-request relay lifecycle --
// account lookup, optional request translation, upstream dispatch,
// streaming splice with optional response translation, and usage/cost
// recording -- plus the Scheduler callback interface the core reports
// account-level failures through.
package relay

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/envoyproxy/ai-gateway/internal/account"
	relayjson "github.com/envoyproxy/ai-gateway/internal/json"
	"github.com/envoyproxy/ai-gateway/internal/relayerr"
	"github.com/envoyproxy/ai-gateway/internal/relaymetrics"
	"github.com/envoyproxy/ai-gateway/internal/relaymsg"
	"github.com/envoyproxy/ai-gateway/internal/sse"
	"github.com/envoyproxy/ai-gateway/internal/translate"
	"github.com/envoyproxy/ai-gateway/internal/usage"
)

// defaultRequestTimeout is used when Config.RequestTimeout is zero.
const defaultRequestTimeout = 600 * time.Second

// messagesPath is the upstream path this relay always forwards to. Model
// name normalization and path routing beyond this single shape are
// explicitly out of scope (spec.md Non-goals).
const messagesPath = "/v1/messages"

// Config holds the per-Core tunables the relay needs beyond what is
// carried on the Account itself.
type Config struct {
	RequestTimeout time.Duration
}

// Core implements C10: one Handle call per inbound request.
type Core struct {
	resolver     account.Resolver
	keyRecorder  account.KeyRecorder
	costCalc     account.CostCalculator
	scheduler    Scheduler
	translateSvc *translate.Service
	metrics      *relaymetrics.Factory
	logger       *slog.Logger
	cfg          Config
}

// NewCore constructs a Core. translateSvc and metrics may be nil: a nil
// translateSvc disables translation regardless of any account's
// TranslationEnabled(), and a nil metrics factory disables metrics
// recording -- both are valid for tests and for the connection-test
// harness (C12), which never wants either.
func NewCore(
	resolver account.Resolver,
	keyRecorder account.KeyRecorder,
	costCalc account.CostCalculator,
	scheduler Scheduler,
	translateSvc *translate.Service,
	metrics *relaymetrics.Factory,
	logger *slog.Logger,
	cfg Config,
) *Core {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	return &Core{
		resolver:     resolver,
		keyRecorder:  keyRecorder,
		costCalc:     costCalc,
		scheduler:    scheduler,
		translateSvc: translateSvc,
		metrics:      metrics,
		logger:       logger,
		cfg:          cfg,
	}
}

// Handle runs the full per-request lifecycle described in spec.md §4.10
// against an already-resolved accountID, a decoded request envelope, an
// api key id used only for usage attribution, and the client's
// ResponseWriter. It writes the appropriate status/body/SSE stream
// directly to w and returns only once the response is fully written or
// the client has disconnected.
func (c *Core) Handle(ctx context.Context, w http.ResponseWriter, accountID, apiKeyID string, req *relaymsg.Request) {
	logger := c.logger
	if logger == nil {
		logger = slog.Default()
	}

	acct, err := c.resolver.ResolveAccount(ctx, accountID)
	if err != nil {
		writeError(w, relayerr.Wrap(relayerr.ErrAccountNotFound, err.Error()))
		return
	}
	if acct.APIKey == "" {
		writeError(w, relayerr.ErrAccountMissingKey)
		return
	}
	if acct.BaseAPI == "" {
		writeError(w, relayerr.ErrAccountMissingBaseURL)
		return
	}

	var recorder *relaymetrics.Recorder
	if c.metrics != nil {
		recorder = c.metrics.NewRecorder(accountID, req.Model)
	}

	sessHash := sessionHash(req.SessionID)
	logger = logger.With("sessionHash", sessHash)

	outbound := req
	if c.translateSvc != nil && acct.TranslationEnabled() {
		outbound = translate.TranslateRequest(ctx, c.translateSvc, acct, req, logger)
	}

	body, err := relayjson.Marshal(outbound)
	if err != nil {
		writeError(w, relayerr.Wrap(relayerr.ErrMalformedRequest, err.Error()))
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	upstreamReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, acct.BaseAPI+messagesPath, bytes.NewReader(body))
	if err != nil {
		writeError(w, relayerr.Wrap(relayerr.ErrUpstreamTransport, err.Error()))
		return
	}
	upstreamReq.Header.Set("Content-Type", "application/json")
	upstreamReq.Header.Set("Authorization", "Bearer "+acct.APIKey)
	upstreamReq.Header.Set("x-api-key", acct.APIKey)
	if acct.UserAgent != "" {
		upstreamReq.Header.Set("User-Agent", acct.UserAgent)
	}

	client := upstreamClient(acct)
	resp, err := client.Do(upstreamReq)
	if err != nil {
		if reqCtx.Err() != nil {
			writeError(w, relayerr.ErrUpstreamTimeout)
		} else {
			writeError(w, relayerr.Wrap(relayerr.ErrUpstreamTransport, err.Error()))
		}
		if recorder != nil {
			recorder.RecordCompletion(ctx, false)
		}
		return
	}
	defer resp.Body.Close()

	success := c.dispatchResponse(ctx, w, resp, acct, apiKeyID, req.Model, sessHash, recorder, logger)
	if recorder != nil {
		recorder.RecordCompletion(ctx, success)
	}
}

// dispatchResponse classifies resp per spec.md §4.10/§7 and either relays
// it as a single JSON body or splices it as an SSE stream.
func (c *Core) dispatchResponse(
	ctx context.Context,
	w http.ResponseWriter,
	resp *http.Response,
	acct account.Account,
	apiKeyID, model, sessHash string,
	recorder *relaymetrics.Recorder,
	logger *slog.Logger,
) bool {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		reason := unauthorizedReason(body)
		c.scheduler.MarkUnauthorized(acct.ID, acct.Provider, sessHash, reason)
		w.Header().Set("Content-Type", resp.Header.Get("Content-Type"))
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(body)
		return false
	case resp.StatusCode == http.StatusTooManyRequests:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		c.scheduler.MarkRateLimited(acct.ID, acct.Provider, sessHash, resetsInSeconds(body))
		w.Header().Set("Content-Type", resp.Header.Get("Content-Type"))
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(body)
		return false
	case resp.StatusCode >= 400:
		forwardStatus(w, resp)
		return false
	case isEventStream(resp):
		return c.spliceStream(ctx, w, resp, acct, apiKeyID, model, recorder, logger)
	default:
		return c.relayNonStreaming(ctx, w, resp, acct, apiKeyID, model, logger)
	}
}

// unauthorizedReason builds the human-readable reason string reported to
// the scheduler on a 401, preferring the first non-empty of the body's
// "error" field taken as a plain string, error.error.message, or
// error.message.
func unauthorizedReason(body []byte) string {
	errorData := gjson.GetBytes(body, "error")
	if errorData.Type == gjson.String && errorData.String() != "" {
		return errorData.String()
	}
	if msg := gjson.GetBytes(body, "error.error.message").String(); msg != "" {
		return msg
	}
	if msg := gjson.GetBytes(body, "error.message").String(); msg != "" {
		return msg
	}
	return ""
}

// resetsInSeconds extracts the provider's reported rate-limit cooldown,
// trying error.resets_in_seconds before the bare resets_in fallback some
// providers use instead.
func resetsInSeconds(body []byte) int {
	if v := gjson.GetBytes(body, "error.resets_in_seconds"); v.Exists() {
		return int(v.Int())
	}
	return int(gjson.GetBytes(body, "resets_in").Int())
}

func forwardStatus(w http.ResponseWriter, resp *http.Response) {
	w.Header().Set("Content-Type", resp.Header.Get("Content-Type"))
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, io.LimitReader(resp.Body, 4<<20))
}

func (c *Core) relayNonStreaming(ctx context.Context, w http.ResponseWriter, resp *http.Response, acct account.Account, apiKeyID, model string, logger *slog.Logger) bool {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		writeError(w, relayerr.Wrap(relayerr.ErrUpstreamTransport, err.Error()))
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)

	tokens := usage.Extract([]byte(gjson.GetBytes(body, "usage").Raw))
	c.recordUsage(ctx, acct, apiKeyID, model, tokens, logger)
	return true
}

// spliceStream feeds the upstream body through an SSE framer, optionally
// rewriting text deltas via a ResponseTranslator, and writes the result to
// w as it arrives. It stops as soon as the client disconnects (w's
// underlying connection closes, observed via ctx.Done()), aborting the
// upstream read; any sentence-buffer residue for a response translator is
// discarded rather than flushed in that case.
func (c *Core) spliceStream(
	ctx context.Context,
	w http.ResponseWriter,
	resp *http.Response,
	acct account.Account,
	apiKeyID, model string,
	recorder *relaymetrics.Recorder,
	logger *slog.Logger,
) bool {
	writeSSEHeaders(w)
	flusher, _ := w.(http.Flusher)

	var respTranslator *translate.ResponseTranslator
	if c.translateSvc != nil && acct.TranslationEnabled() {
		sourceLang := acct.TranslationTargetLang
		if sourceLang == "" {
			sourceLang = "en"
		}
		targetLang := acct.TranslationSourceLang
		if targetLang == "" {
			targetLang = "zh"
		}
		respTranslator = translate.NewResponseTranslator(c.translateSvc, sourceLang, targetLang, logger)
	}

	framer := sse.NewFramer()
	tokens := usage.Tokens{}
	buf := make([]byte, 32*1024)
	streamEnded := false

	for !streamEnded {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, evt := range framer.Feed(buf[:n]) {
				if c.writeEvent(ctx, w, evt, respTranslator, &tokens, recorder) {
					streamEnded = true
					break
				}
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if evt, ok := framer.Flush(); ok {
				c.writeEvent(ctx, w, evt, respTranslator, &tokens, recorder)
				if flusher != nil {
					flusher.Flush()
				}
			}
			break
		}
	}

	c.recordUsage(ctx, acct, apiKeyID, model, tokens, logger)
	return true
}

// writeEvent writes a single framed SSE event to w, returning true if the
// event was the terminal [DONE] sentinel.
func (c *Core) writeEvent(ctx context.Context, w http.ResponseWriter, evt sse.Event, respTranslator *translate.ResponseTranslator, tokens *usage.Tokens, recorder *relaymetrics.Recorder) bool {
	if recorder != nil {
		recorder.RecordFirstByte(ctx)
	}
	if evt.Done {
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
		return true
	}

	chunk, err := sse.DecodeEvent(evt.Data)
	if err != nil {
		// A single malformed event must not abort an otherwise healthy
		// stream; skip it.
		return false
	}
	extractStreamUsage(chunk, tokens)

	payloads := [][]byte{evt.Data}
	if respTranslator != nil {
		payloads = respTranslator.Process(ctx, chunk)
	}
	for _, p := range payloads {
		_, _ = fmt.Fprintf(w, "data: %s\n\n", p)
	}
	return false
}

func extractStreamUsage(chunk sse.Chunk, tokens *usage.Tokens) {
	switch {
	case chunk.MessageStart != nil:
		t := usage.Extract(chunk.MessageStart.Message.Usage)
		mergeTokens(tokens, t)
	case chunk.MessageDelta != nil:
		t := usage.Extract(chunk.MessageDelta.Usage)
		mergeTokens(tokens, t)
	}
}

func mergeTokens(dst *usage.Tokens, src usage.Tokens) {
	if src.Input > dst.Input {
		dst.Input = src.Input
	}
	if src.ActualInput > dst.ActualInput {
		dst.ActualInput = src.ActualInput
	}
	if src.CacheReadTokens > dst.CacheReadTokens {
		dst.CacheReadTokens = src.CacheReadTokens
	}
	if src.CacheCreationTokens > dst.CacheCreationTokens {
		dst.CacheCreationTokens = src.CacheCreationTokens
	}
	if src.Output > dst.Output {
		dst.Output = src.Output
	}
	dst.Total = dst.Input + dst.Output
}

// recordUsage computes cost and persists usage, logging but never
// surfacing failures: per spec.md §7, a usage-record or quota-update
// failure must not affect a response already written to the client.
func (c *Core) recordUsage(ctx context.Context, acct account.Account, apiKeyID, model string, tokens usage.Tokens, logger *slog.Logger) {
	u := account.Usage{
		Model:               model,
		InputTokens:         tokens.ActualInput,
		OutputTokens:        tokens.Output,
		CachedInputTokens:   tokens.CacheReadTokens,
		CacheCreationTokens: tokens.CacheCreationTokens,
	}
	cost := 0.0
	if c.costCalc != nil {
		var err error
		cost, err = c.costCalc.Cost(ctx, u)
		if err != nil {
			logger.Warn("cost calculation failed", "account", acct.ID, "error", err)
		}
	}
	if c.keyRecorder == nil {
		return
	}
	if err := c.keyRecorder.RecordUsage(ctx, acct.ID, apiKeyID, u, cost); err != nil {
		logger.Warn("usage record failed", "account", acct.ID, "error", err)
	}
	if err := c.keyRecorder.UpdateLastUsedAt(ctx, acct.ID); err != nil {
		logger.Warn("last-used-at update failed", "account", acct.ID, "error", err)
	}
}

func writeSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
}

func isEventStream(resp *http.Response) bool {
	return bytes.Contains([]byte(resp.Header.Get("Content-Type")), []byte("text/event-stream"))
}

func writeError(w http.ResponseWriter, err error) {
	status := relayerr.StatusCode(err)
	userErr := relayerr.GetUserFacingError(err)
	message := "internal error"
	if userErr != nil {
		message = userErr.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(relayjson.MarshalErrorEnvelope(relayjson.ErrorBody{Message: message}))
}

// upstreamClient builds a per-account HTTP client, proxy-aware when the
// account configures one, matching the teacher's one-handler-per-backend
// construction pattern rather than sharing one global client across every
// account.
func upstreamClient(acct account.Account) *http.Client {
	client := &http.Client{}
	if acct.Proxy == "" {
		return client
	}
	proxyURL, err := url.Parse(acct.Proxy)
	if err != nil {
		return client
	}
	client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	return client
}

// sessionHash derives a stable per-session affinity key from a client-
// supplied session id alone, so the same session hashes identically
// regardless of which account eventually serves it. Returns "" when
// sessionID is empty: there is no affinity key to report.
func sessionHash(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(sessionID))
	return fmt.Sprintf("%x", sum)[:16]
}
