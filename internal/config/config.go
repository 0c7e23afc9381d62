// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package config loads the relay's static configuration from YAML,
// applying the defaults spec.md's External Interfaces section documents,
// the same way the teacher's internal/filterapi derives a RuntimeConfig
// from a statically loaded Config.
package config

import (
	"fmt"
	"os"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/envoyproxy/ai-gateway/internal/account"
)

// Defaults mirror spec.md §6's configuration table.
const (
	DefaultRequestTimeoutMS   = 600_000
	DefaultTranslationModel   = "qwen3-8b"
	DefaultTranslationCache   = 1000
	DefaultTranslationTTLHrs  = 24
	DefaultTranslationMaxTok  = 4096
	DefaultListenAddr         = ":8080"
)

// Translation holds the translation.* configuration keys.
type Translation struct {
	Enabled       bool   `json:"enabled"`
	AccountID     string `json:"accountId"`
	Model         string `json:"model"`
	CacheSize     int    `json:"cacheSize"`
	CacheTTLHours int    `json:"cacheTTLHours"`
	MaxTokens     int    `json:"maxTokens"`
}

// Config is the relay's top-level static configuration.
type Config struct {
	ListenAddr       string            `json:"listenAddr"`
	RequestTimeoutMS int               `json:"requestTimeout"`
	Translation      Translation       `json:"translation"`
	Accounts         []account.Account `json:"accounts"`
}

// applyDefaults fills in every field spec.md documents a default for.
func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.RequestTimeoutMS <= 0 {
		c.RequestTimeoutMS = DefaultRequestTimeoutMS
	}
	if c.Translation.Model == "" {
		c.Translation.Model = DefaultTranslationModel
	}
	if c.Translation.CacheSize <= 0 {
		c.Translation.CacheSize = DefaultTranslationCache
	}
	if c.Translation.CacheTTLHours <= 0 {
		c.Translation.CacheTTLHours = DefaultTranslationTTLHrs
	}
	if c.Translation.MaxTokens <= 0 {
		c.Translation.MaxTokens = DefaultTranslationMaxTok
	}
}

// RequestTimeout returns RequestTimeoutMS as a time.Duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// CacheTTL returns Translation.CacheTTLHours as a time.Duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Translation.CacheTTLHours) * time.Hour
}

// Load reads and parses a YAML config file at path, applying defaults for
// any field the file omits.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}
