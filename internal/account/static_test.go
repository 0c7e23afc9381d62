// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticResolverResolvesSeededAccounts(t *testing.T) {
	r := NewStaticResolver(
		[]Account{{ID: "acct-1", APIKey: "k1"}},
		[]ApiKey{{ID: "key-1", DailyQuota: 100}},
	)

	acct, err := r.ResolveAccount(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "k1", acct.APIKey)

	key, err := r.ResolveAPIKey(context.Background(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), key.DailyQuota)

	_, err = r.ResolveAccount(context.Background(), "does-not-exist")
	assert.Error(t, err)
}

func TestStaticResolverPutReplacesAccount(t *testing.T) {
	r := NewStaticResolver(nil, nil)
	r.Put(Account{ID: "acct-1", APIKey: "original"})
	r.Put(Account{ID: "acct-1", APIKey: "updated"})

	acct, err := r.ResolveAccount(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "updated", acct.APIKey)
}

func TestLogRecorderInvokesCallback(t *testing.T) {
	var gotAccount string
	var gotCost float64
	recorder := LogRecorder{Log: func(accountID, _ string, _ Usage, cost float64) {
		gotAccount = accountID
		gotCost = cost
	}}
	require.NoError(t, recorder.RecordUsage(context.Background(), "acct-1", "key-1", Usage{}, 1.5))
	assert.Equal(t, "acct-1", gotAccount)
	assert.Equal(t, 1.5, gotCost)
	assert.NoError(t, recorder.UpdateLastUsedAt(context.Background(), "acct-1"))
}

func TestZeroCostCalculatorAlwaysReturnsZero(t *testing.T) {
	cost, err := ZeroCostCalculator{}.Cost(context.Background(), Usage{InputTokens: 1000})
	require.NoError(t, err)
	assert.Equal(t, 0.0, cost)
}
