// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package relay

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envoyproxy/ai-gateway/internal/account"
	"github.com/envoyproxy/ai-gateway/internal/relaymsg"
)

type unauthorizedCall struct {
	accountID, providerTag, sessionHash, reason string
}

type fakeScheduler struct {
	mu                 sync.Mutex
	unauthorizedCalls  []unauthorizedCall
	rateLimitedAccount string
	rateLimitedProvider string
	rateLimitedSession string
	rateLimitedReset   int
}

func (f *fakeScheduler) MarkUnauthorized(accountID, providerTag, sessionHash, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unauthorizedCalls = append(f.unauthorizedCalls, unauthorizedCall{accountID, providerTag, sessionHash, reason})
}

func (f *fakeScheduler) MarkRateLimited(accountID, providerTag, sessionHash string, resetSeconds int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rateLimitedAccount = accountID
	f.rateLimitedProvider = providerTag
	f.rateLimitedSession = sessionHash
	f.rateLimitedReset = resetSeconds
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCore(t *testing.T, upstreamURL string, scheduler Scheduler) *Core {
	t.Helper()
	resolver := account.NewStaticResolver([]account.Account{
		{ID: "acct-1", APIKey: "key-1", BaseAPI: upstreamURL},
	}, nil)
	return NewCore(resolver, account.LogRecorder{}, account.ZeroCostCalculator{}, scheduler, nil, nil, discardLogger(), Config{})
}

func TestHandleNonStreamingSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","usage":{"input_tokens":10,"output_tokens":5}}`))
	}))
	defer server.Close()

	core := newTestCore(t, server.URL, &fakeScheduler{})
	rec := httptest.NewRecorder()
	req := &relaymsg.Request{Model: "claude-3", Messages: []relaymsg.Message{{Role: relaymsg.RoleUser, Content: relaymsg.Content{Text: "hi"}}}}

	core.Handle(context.Background(), rec, "acct-1", "key-a", req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "msg_1")
}

func TestHandleUnknownAccountReturnsNotFound(t *testing.T) {
	core := newTestCore(t, "http://upstream.invalid", &fakeScheduler{})
	rec := httptest.NewRecorder()
	req := &relaymsg.Request{Model: "m", Messages: []relaymsg.Message{{Role: relaymsg.RoleUser, Content: relaymsg.Content{Text: "hi"}}}}

	core.Handle(context.Background(), rec, "does-not-exist", "key-a", req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleUpstreamUnauthorizedNotifiesScheduler(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer server.Close()

	scheduler := &fakeScheduler{}
	core := newTestCore(t, server.URL, scheduler)
	rec := httptest.NewRecorder()
	req := &relaymsg.Request{Model: "m", SessionID: "session-xyz", Messages: []relaymsg.Message{{Role: relaymsg.RoleUser, Content: relaymsg.Content{Text: "hi"}}}}

	core.Handle(context.Background(), rec, "acct-1", "key-a", req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Len(t, scheduler.unauthorizedCalls, 1)
	call := scheduler.unauthorizedCalls[0]
	assert.Equal(t, "acct-1", call.accountID)
	assert.Equal(t, sessionHash("session-xyz"), call.sessionHash)
	assert.Equal(t, "bad key", call.reason)
}

func TestHandleUpstreamRateLimitedNotifiesScheduler(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"resets_in_seconds":42}}`))
	}))
	defer server.Close()

	scheduler := &fakeScheduler{}
	core := newTestCore(t, server.URL, scheduler)
	rec := httptest.NewRecorder()
	req := &relaymsg.Request{Model: "m", SessionID: "session-xyz", Messages: []relaymsg.Message{{Role: relaymsg.RoleUser, Content: relaymsg.Content{Text: "hi"}}}}

	core.Handle(context.Background(), rec, "acct-1", "key-a", req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "acct-1", scheduler.rateLimitedAccount)
	assert.Equal(t, sessionHash("session-xyz"), scheduler.rateLimitedSession)
	assert.Equal(t, 42, scheduler.rateLimitedReset)
}

func TestHandleUpstreamRateLimitedFallsBackToResetsInField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit_error"},"resets_in":7}`))
	}))
	defer server.Close()

	scheduler := &fakeScheduler{}
	core := newTestCore(t, server.URL, scheduler)
	rec := httptest.NewRecorder()
	req := &relaymsg.Request{Model: "m", Messages: []relaymsg.Message{{Role: relaymsg.RoleUser, Content: relaymsg.Content{Text: "hi"}}}}

	core.Handle(context.Background(), rec, "acct-1", "key-a", req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 7, scheduler.rateLimitedReset)
}

func TestHandleStreamingSplicesEventsVerbatim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("data: {\"type\":\"message_start\",\"message\":{\"model\":\"m\",\"usage\":{\"input_tokens\":1,\"output_tokens\":0}}}\n\n"))
		_, _ = w.Write([]byte("data: {\"type\":\"message_stop\"}\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	core := newTestCore(t, server.URL, &fakeScheduler{})
	rec := httptest.NewRecorder()
	req := &relaymsg.Request{Model: "m", Stream: true, Messages: []relaymsg.Message{{Role: relaymsg.RoleUser, Content: relaymsg.Content{Text: "hi"}}}}

	core.Handle(context.Background(), rec, "acct-1", "key-a", req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "message_start")
	assert.Contains(t, body, "message_stop")
	assert.Contains(t, body, "[DONE]")
}
