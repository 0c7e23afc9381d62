// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	path := writeConfig(t, "listenAddr: \":9090\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, DefaultRequestTimeoutMS, cfg.RequestTimeoutMS)
	assert.Equal(t, DefaultTranslationModel, cfg.Translation.Model)
	assert.Equal(t, DefaultTranslationCache, cfg.Translation.CacheSize)
	assert.Equal(t, DefaultTranslationTTLHrs, cfg.Translation.CacheTTLHours)
	assert.Equal(t, DefaultTranslationMaxTok, cfg.Translation.MaxTokens)
}

func TestLoadPreservesExplicitValues(t *testing.T) {
	path := writeConfig(t, `
listenAddr: ":7000"
requestTimeout: 30000
translation:
  enabled: true
  accountId: translator-1
  model: qwen3-8b
  cacheSize: 50
  cacheTTLHours: 2
  maxTokens: 512
accounts:
  - id: acct-1
    baseApi: https://upstream.example.com
    apiKey: secret-key
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.True(t, cfg.Translation.Enabled)
	assert.Equal(t, "translator-1", cfg.Translation.AccountID)
	require.Len(t, cfg.Accounts, 1)
	assert.Equal(t, "acct-1", cfg.Accounts[0].ID)
	assert.Equal(t, "secret-key", cfg.Accounts[0].APIKey)

	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 2*time.Hour, cfg.CacheTTL())
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
