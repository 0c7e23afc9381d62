// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package relay

// Scheduler is C11: the fire-and-forget callback interface the relay core
// uses to report account-level failures back to the account pool's load
// balancing policy. Load-balancing itself -- which account to pick next,
// how long to cool an account down -- is explicitly out of scope for this
// module; the relay only ever reports what it observed.
//
// Both methods are expected to be non-blocking and must never return an
// error the relay core would need to act on: a scheduler-side failure to
// record state is the scheduler's own problem.
type Scheduler interface {
	// MarkUnauthorized reports that accountID's credentials were rejected
	// by the upstream provider (HTTP 401). providerTag identifies which
	// provider API family the account belongs to. sessionHash is the
	// affinity key of the request that triggered this, or "" if the
	// request carried no session id. reason is a human-readable message
	// extracted from the upstream error body.
	MarkUnauthorized(accountID, providerTag, sessionHash, reason string)
	// MarkRateLimited reports that accountID was rate limited by the
	// upstream provider via an HTTP 429 response. The relay core does not
	// call it for rate-limit error events inside a 2xx SSE stream; those
	// events are forwarded to the client like any other event.
	// resetSeconds is the provider's reported
	// cooldown, or 0 if the provider did not report one. providerTag and
	// sessionHash carry the same meaning as in MarkUnauthorized.
	MarkRateLimited(accountID, providerTag, sessionHash string, resetSeconds int)
}

// NopScheduler is a Scheduler that discards every callback. It is useful
// for standalone connection testing (C12) and for tests that don't care
// about scheduler interaction.
type NopScheduler struct{}

func (NopScheduler) MarkUnauthorized(accountID, providerTag, sessionHash, reason string)   {}
func (NopScheduler) MarkRateLimited(accountID, providerTag, sessionHash string, resetSeconds int) {}
