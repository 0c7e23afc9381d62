// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package probe implements C12: a single-shot streaming connection test
// against an account's upstream, used to validate a newly added account
// without going through the full relay lifecycle. It is grounded on the
// teacher's tests/internal/testextauth/testextauthserver single-purpose
// test harness shape, adapted from a test server into a test client.
package probe

import (
	"context"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/envoyproxy/ai-gateway/internal/account"
	"github.com/envoyproxy/ai-gateway/internal/relayerr"
)

// defaultProbeTimeout bounds the entire connection test.
const defaultProbeTimeout = 30 * time.Second

// EventType identifies a probe domain event.
type EventType string

const (
	EventTestStart    EventType = "test_start"
	EventContent      EventType = "content"
	EventMessageStop  EventType = "message_stop"
	EventTestComplete EventType = "test_complete"
)

// Event is one domain event emitted during a connection test.
type Event struct {
	Type    EventType
	Content string
	Err     error
}

// TestConnection issues a single streaming chat completion against acct
// and emits domain events on the returned channel as the response
// streams in. The channel is closed once the test completes, successfully
// or not; a failure is carried as the Err field on an EventTestComplete
// event rather than by closing the channel early, so a caller always sees
// a terminal event.
func TestConnection(ctx context.Context, acct account.Account, model, prompt string) <-chan Event {
	events := make(chan Event, 8)
	go runProbe(ctx, acct, model, prompt, events)
	return events
}

func runProbe(ctx context.Context, acct account.Account, model, prompt string, events chan<- Event) {
	defer close(events)
	events <- Event{Type: EventTestStart}

	if acct.APIKey == "" {
		events <- Event{Type: EventTestComplete, Err: relayerr.ErrAccountMissingKey}
		return
	}
	if acct.BaseAPI == "" {
		events <- Event{Type: EventTestComplete, Err: relayerr.ErrAccountMissingBaseURL}
		return
	}
	if model == "" {
		model = acct.Model
	}

	ctx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()

	client := openai.NewClient(
		option.WithAPIKey(acct.APIKey),
		option.WithBaseURL(acct.BaseAPI),
	)

	stream := client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta != "" {
			events <- Event{Type: EventContent, Content: delta}
		}
	}
	if err := stream.Err(); err != nil {
		events <- Event{Type: EventTestComplete, Err: err}
		return
	}

	events <- Event{Type: EventMessageStop}
	events <- Event{Type: EventTestComplete}
}
