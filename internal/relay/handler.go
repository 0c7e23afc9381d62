// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package relay

import (
	"log/slog"
	"net/http"
	"time"

	relayjson "github.com/envoyproxy/ai-gateway/internal/json"
	"github.com/envoyproxy/ai-gateway/internal/relayerr"
	"github.com/envoyproxy/ai-gateway/internal/relaymsg"
)

// maxRequestBodyBytes bounds an inbound request body so a misbehaving or
// malicious client cannot exhaust memory before the relay even resolves
// an account.
const maxRequestBodyBytes = 16 << 20 // 16 MiB

// Header names the relay reads account/key identity from. Account and API
// key CRUD, and the validation that an api key is entitled to use an
// account, are external collaborators (spec.md §1); this relay only needs
// their already-validated identifiers.
const (
	accountHeader = "X-Relay-Account-Id"
	apiKeyHeader  = "X-Relay-Api-Key-Id"
)

// NewServer builds the relay's HTTP server: a single POST endpoint that
// runs Core.Handle, plus a health endpoint, on top of a plain net/http
// server with explicit timeouts -- grounded on the teacher's own
// tests/internal/testupstreamlib plain HTTP test server, since the
// teacher's production transport is an Envoy ext_proc filter with no
// standalone HTTP entrypoint of its own.
func NewServer(addr string, core *Core, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /v1/messages", core.serveMessages(logger))

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func (c *Core) serveMessages(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := r.Header.Get(accountHeader)
		if accountID == "" {
			writeError(w, relayerr.ErrAccountNotConfigured)
			return
		}
		apiKeyID := r.Header.Get(apiKeyHeader)

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
		var req relaymsg.Request
		if err := relayjson.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Warn("failed to decode request body", "error", err)
			writeError(w, relayerr.Wrap(relayerr.ErrMalformedRequest, err.Error()))
			return
		}
		if req.SessionID == "" {
			req.SessionID = r.Header.Get("session_id")
		}
		if err := validateRequest(&req); err != nil {
			writeError(w, err)
			return
		}

		c.Handle(r.Context(), w, accountID, apiKeyID, &req)
	}
}

func validateRequest(req *relaymsg.Request) error {
	if req.Model == "" {
		return relayerr.Wrap(relayerr.ErrInvalidRequestBody, "model is required")
	}
	if len(req.Messages) == 0 {
		return relayerr.Wrap(relayerr.ErrInvalidRequestBody, "messages must not be empty")
	}
	return nil
}
