// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package account

import (
	"context"
	"fmt"
	"sync"
)

// StaticResolver resolves accounts from a fixed, config-loaded map. It
// exists so cmd/relayd has something real to wire the relay core against
// out of the box; a production deployment is expected to supply its own
// Resolver backed by the encrypted account store spec.md §1 places outside
// this module's scope.
type StaticResolver struct {
	mu       sync.RWMutex
	accounts map[string]Account
	apiKeys  map[string]ApiKey
}

// NewStaticResolver builds a StaticResolver seeded with accounts and
// apiKeys, both keyed by their own ID field.
func NewStaticResolver(accounts []Account, apiKeys []ApiKey) *StaticResolver {
	r := &StaticResolver{
		accounts: make(map[string]Account, len(accounts)),
		apiKeys:  make(map[string]ApiKey, len(apiKeys)),
	}
	for _, a := range accounts {
		r.accounts[a.ID] = a
	}
	for _, k := range apiKeys {
		r.apiKeys[k.ID] = k
	}
	return r
}

func (r *StaticResolver) ResolveAccount(_ context.Context, accountID string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return Account{}, fmt.Errorf("no account registered for id %q", accountID)
	}
	return a, nil
}

func (r *StaticResolver) ResolveAPIKey(_ context.Context, apiKeyID string) (ApiKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.apiKeys[apiKeyID]
	if !ok {
		return ApiKey{}, fmt.Errorf("no api key registered for id %q", apiKeyID)
	}
	return k, nil
}

// Put inserts or replaces an account, used to update lastUsedAt-style
// state from a KeyRecorder.
func (r *StaticResolver) Put(a Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.ID] = a
}

// LogRecorder is a KeyRecorder that only logs usage, used as the default
// in cmd/relayd until a real persistence-backed recorder is wired in.
type LogRecorder struct {
	Log func(accountID, apiKeyID string, u Usage, cost float64)
}

func (l LogRecorder) RecordUsage(_ context.Context, accountID, apiKeyID string, u Usage, cost float64) error {
	if l.Log != nil {
		l.Log(accountID, apiKeyID, u, cost)
	}
	return nil
}

func (l LogRecorder) UpdateLastUsedAt(_ context.Context, _ string) error {
	return nil
}

// ZeroCostCalculator is a CostCalculator that always reports zero cost,
// used until a real cost-rate table (spec.md §1, out of this module's
// scope) is wired in.
type ZeroCostCalculator struct{}

func (ZeroCostCalculator) Cost(_ context.Context, _ Usage) (float64, error) {
	return 0, nil
}
