// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package json // nolint: revive

import (
	"testing"

	sonicjson "github.com/bytedance/sonic" // nolint: depguard
)

var (
	// Unmarshal is equivalent to encoding/json.Unmarshal.
	Unmarshal = sonicjson.ConfigDefault.Unmarshal
	// Marshal is equivalent to encoding/json.Marshal.
	Marshal = sonicjson.ConfigDefault.Marshal
	// NewEncoder is equivalent to encoding/json.NewEncoder.
	NewEncoder = sonicjson.ConfigDefault.NewEncoder
	// NewDecoder is equivalent to encoding/json.NewDecoder.
	NewDecoder = sonicjson.ConfigDefault.NewDecoder
	// MarshalForDeterministicTesting marshals a value to JSON in a deterministic way for testing.
	// The normal sonic configuration does not guarantee deterministic output in terms of field order.
	// It panics if called outside of tests.
	MarshalForDeterministicTesting = func(v interface{}) ([]byte, error) {
		if !testing.Testing() {
			panic("MarshalForDeterministicTesting can only be called from tests")
		}
		return sonicjson.ConfigStd.Marshal(v)
	}
)

type (
	// RawMessage is equivalent to encoding/json.RawMessage.
	RawMessage = sonicjson.NoCopyRawMessage
	// Marshaler is the function signature of encoding/json.Marshal.
	Marshaler = func(interface{}) ([]byte, error)
)

// ErrorEnvelope is the `{"error": {...}}` shape every synthetic error body
// the relay writes to a client follows, whether it originates from the
// relay itself (account resolution, malformed request) or is synthesized
// in place of a partially-read upstream error body.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody is the inner object of an ErrorEnvelope.
type ErrorBody struct {
	Type            string `json:"type,omitempty"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message"`
	ResetsInSeconds int    `json:"resets_in_seconds,omitempty"`
}

// MarshalErrorEnvelope marshals an ErrorEnvelope wrapping body, swallowing
// the (theoretically impossible, since ErrorEnvelope has no cyclic or
// unsupported field types) marshal error rather than propagating it: a
// failure to build an error body must never itself become an unhandled
// error on the response-writing path.
func MarshalErrorEnvelope(body ErrorBody) []byte {
	out, err := Marshal(ErrorEnvelope{Error: body})
	if err != nil {
		return []byte(`{"error":{"message":"internal error"}}`)
	}
	return out
}
