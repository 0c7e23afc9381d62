// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/envoyproxy/ai-gateway/internal/account"
	"github.com/envoyproxy/ai-gateway/internal/relayerr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func drain(ch <-chan Event) []Event {
	var events []Event
	for e := range ch {
		events = append(events, e)
	}
	return events
}

func TestTestConnectionMissingAPIKeyFailsImmediately(t *testing.T) {
	events := drain(TestConnection(context.Background(), account.Account{BaseAPI: "http://upstream.invalid"}, "model", "hi"))
	require.Len(t, events, 2)
	assert.Equal(t, EventTestStart, events[0].Type)
	assert.Equal(t, EventTestComplete, events[1].Type)
	assert.ErrorIs(t, events[1].Err, relayerr.ErrAccountMissingKey)
}

func TestTestConnectionMissingBaseURLFailsImmediately(t *testing.T) {
	events := drain(TestConnection(context.Background(), account.Account{APIKey: "k"}, "model", "hi"))
	require.Len(t, events, 2)
	assert.ErrorIs(t, events[1].Err, relayerr.ErrAccountMissingBaseURL)
}

func TestTestConnectionStreamsContentThenCompletes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		frames := []string{
			`{"id":"1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"content":"Hel"}}]}`,
			`{"id":"1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"content":"lo"}}]}`,
		}
		for _, f := range frames {
			_, _ = w.Write([]byte("data: " + f + "\n\n"))
			flusher.Flush()
		}
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	acct := account.Account{APIKey: "k", BaseAPI: server.URL}
	events := drain(TestConnection(context.Background(), acct, "test-model", "hi"))
	require.NotEmpty(t, events)
	assert.Equal(t, EventTestStart, events[0].Type)

	var content string
	for _, e := range events {
		if e.Type == EventContent {
			content += e.Content
		}
	}
	assert.Equal(t, "Hello", content)

	last := events[len(events)-1]
	assert.Equal(t, EventTestComplete, last.Type)
	assert.NoError(t, last.Err)
}
