// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package usage extracts token usage from a provider's usage object,
// tolerating the several field-naming variants different providers use for
// the same concept (input tokens, cached/cache-creation tokens, output
// tokens) instead of requiring one fixed schema.
package usage

import (
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/gjson"
)

// Tokens is the usage the relay records per request. ActualInput excludes
// only cached-read tokens from Input -- cache-creation tokens are billed at
// their own (higher) rate and are not "re-used" input, so they are not
// subtracted.
type Tokens struct {
	Input               uint32
	ActualInput         uint32
	Output              uint32
	CacheReadTokens     uint32
	CacheCreationTokens uint32
	Total               uint32
}

// fieldVariants lists, in preference order, the JSON field names providers
// use for the same usage concept. gjson.GetBytes on a missing path simply
// reports !Exists, so the cascade is a plain first-match scan.
var (
	inputTokenFields  = []string{"input_tokens", "prompt_tokens"}
	outputTokenFields = []string{"output_tokens", "completion_tokens"}
	totalTokenFields  = []string{"total_tokens"}
	// cacheReadTokenFields has exactly one entry: cached-read accounting
	// is only ever reported under this nested path.
	cacheReadTokenFields = []string{"input_tokens_details.cached_tokens"}
	cacheCreationTokenFields = []string{
		"input_tokens_details.cache_creation_input_tokens",
		"input_tokens_details.cache_creation_tokens",
		"cache_creation_input_tokens",
		"cache_creation_tokens",
	}
)

// Extract reads a provider usage object, in either Anthropic or OpenAI
// shape, from raw JSON and returns the normalized Tokens. It never errors:
// any field that cannot be found is treated as zero, since usage
// accounting failures must never block the response path. The relay core
// uses Extract for both non-streaming bodies and streaming usage events.
func Extract(usageJSON []byte) Tokens {
	input := firstUint32(usageJSON, inputTokenFields)
	output := firstUint32(usageJSON, outputTokenFields)
	cacheRead := firstUint32(usageJSON, cacheReadTokenFields)
	cacheCreation := firstUint32(usageJSON, cacheCreationTokenFields)

	t := build(input, output, cacheRead, cacheCreation)
	if total, ok := lookupUint32(usageJSON, totalTokenFields); ok {
		t.Total = total
	}
	return t
}

// FromAnthropicUsage extracts Tokens from an already-decoded anthropic.Usage
// struct, for callers that hold a decoded SDK value instead of raw JSON.
func FromAnthropicUsage(u anthropic.Usage) Tokens {
	return build(
		uint32(u.InputTokens),
		uint32(u.OutputTokens),
		uint32(u.CacheReadInputTokens),
		uint32(u.CacheCreationInputTokens),
	)
}

// FromAnthropicMessageDeltaUsage extracts Tokens from the partial usage
// object carried on a message_delta event, where only output-related
// fields are typically populated.
func FromAnthropicMessageDeltaUsage(u anthropic.MessageDeltaUsage) Tokens {
	return build(
		uint32(u.InputTokens),
		uint32(u.OutputTokens),
		uint32(u.CacheReadInputTokens),
		uint32(u.CacheCreationInputTokens),
	)
}

// build derives ActualInput as max(0, input - cacheRead) and Total as
// input + output + cacheCreation, unless the caller (Extract) finds an
// explicit total_tokens field, in which case that value takes precedence.
func build(input, output, cacheRead, cacheCreation uint32) Tokens {
	actualInput := input
	if actualInput > cacheRead {
		actualInput -= cacheRead
	} else {
		actualInput = 0
	}
	return Tokens{
		Input:               input,
		ActualInput:         actualInput,
		Output:              output,
		CacheReadTokens:     cacheRead,
		CacheCreationTokens: cacheCreation,
		Total:               input + output + cacheCreation,
	}
}

func firstUint32(data []byte, fields []string) uint32 {
	v, _ := lookupUint32(data, fields)
	return v
}

func lookupUint32(data []byte, fields []string) (uint32, bool) {
	for _, f := range fields {
		result := gjson.GetBytes(data, f)
		if result.Exists() {
			return uint32(result.Int()), true
		}
	}
	return 0, false
}
