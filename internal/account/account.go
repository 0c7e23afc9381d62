// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package account defines the read-only views and collaborator interfaces
// the relay core and translation service depend on: account/apikey CRUD,
// encrypted credential storage, and cost-rate lookup all live outside this
// module (spec §1's external collaborators). Declaring them here as
// interfaces, injected at construction, breaks what would otherwise be a
// dependency cycle between the translation service and an account store
// that also needs to know which account is the "translator account".
package account

import "context"

// Account is a snapshot view of a pooled upstream provider account. Callers
// must treat it as immutable; the relay core takes a fresh snapshot per
// request rather than holding a long-lived reference.
type Account struct {
	ID         string `json:"id"`
	Provider   string `json:"provider,omitempty"`
	BaseAPI    string `json:"baseApi"`
	APIKey     string `json:"apiKey"`
	UserAgent  string `json:"userAgent,omitempty"`
	Proxy      string `json:"proxy,omitempty"`
	DailyQuota int64  `json:"dailyQuota,omitempty"`
	Model      string `json:"defaultModel,omitempty"`

	// EnableTranslation carries the account's raw configured value for the
	// translation toggle. It is intentionally untyped at this layer so the
	// single, uniform truthy rule lives in one place: TranslationEnabled.
	EnableTranslation     any    `json:"enableTranslation,omitempty"`
	TranslationSourceLang string `json:"translationSourceLang,omitempty"`
	TranslationTargetLang string `json:"translationTargetLang,omitempty"`
}

// TranslationEnabled applies the single rule the relay uses everywhere a
// translation toggle is evaluated: translation is enabled only when the
// configured value is the boolean true or the exact string "true". Every
// other value, including "false", "1", "yes", or any non-string/non-bool
// type, is treated as disabled. This resolves the source system's
// inconsistency between how the request path and the response path used to
// interpret the toggle by picking one rule and applying it on both paths.
func (a Account) TranslationEnabled() bool {
	switch v := a.EnableTranslation.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}

// ApiKey is a snapshot view of an inbound API key record and its quota
// state. The field name matches the data model's own casing rather than Go
// convention so it reads the same as the wire field it represents.
type ApiKey struct {
	ID         string `json:"id"`
	DailyQuota int64  `json:"dailyQuota,omitempty"`
	DailyUsed  int64  `json:"dailyUsed,omitempty"`
	TotalQuota int64  `json:"totalQuota,omitempty"`
	TotalUsed  int64  `json:"totalUsed,omitempty"`
}

// Resolver resolves account and API key records by id. Implementations are
// expected to hold encrypted credentials and return plaintext snapshots;
// this package never persists or decrypts anything itself.
type Resolver interface {
	ResolveAccount(ctx context.Context, accountID string) (Account, error)
	ResolveAPIKey(ctx context.Context, apiKeyID string) (ApiKey, error)
}

// Usage is the token/cost accounting for a single completed request,
// passed to KeyRecorder and CostCalculator after a response finishes.
type Usage struct {
	Model              string
	InputTokens        uint32
	OutputTokens       uint32
	CachedInputTokens  uint32
	CacheCreationTokens uint32
}

// CostCalculator converts a Usage into a monetary cost using an externally
// owned cost-rate table (spec §1 excludes the rate table itself from this
// module's scope).
type CostCalculator interface {
	Cost(ctx context.Context, u Usage) (float64, error)
}

// KeyRecorder persists per-key and per-account usage after a request
// completes. Failures here are logged by the caller and never surfaced to
// the client (spec §7).
type KeyRecorder interface {
	RecordUsage(ctx context.Context, accountID, apiKeyID string, u Usage, cost float64) error
	UpdateLastUsedAt(ctx context.Context, accountID string) error
}
