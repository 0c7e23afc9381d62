// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/envoyproxy/ai-gateway/internal/sse"
	"github.com/envoyproxy/ai-gateway/internal/translationcache"
)

func decodeChunk(t *testing.T, raw string) sse.Chunk {
	t.Helper()
	chunk, err := sse.DecodeEvent([]byte(raw))
	require.NoError(t, err)
	return chunk
}

func TestProcessPassesThroughNonTextDeltasUnchanged(t *testing.T) {
	rt := NewResponseTranslator(nil, "en", "zh", discardLogger())

	start := decodeChunk(t, `{"type":"content_block_start","index":0,"content_block":{"type":"tool_use"}}`)
	out := rt.Process(context.Background(), start)
	require.Len(t, out, 1)
	assert.Equal(t, start.Raw, out[0])

	delta := decodeChunk(t, `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"a\":1}"}}`)
	out = rt.Process(context.Background(), delta)
	require.Len(t, out, 1)
	assert.Equal(t, delta.Raw, out[0])
}

func TestProcessBuffersTextDeltasUntilSentenceComplete(t *testing.T) {
	cache := translationcache.New(10, time.Hour)
	cache.Set(translationcache.Key("en", "zh", "Hello there."), "你好。")
	svc := NewService(nil, "", "", 0, cache, discardLogger())
	rt := NewResponseTranslator(svc, "en", "zh", discardLogger())

	start := decodeChunk(t, `{"type":"content_block_start","index":0,"content_block":{"type":"text"}}`)
	rt.Process(context.Background(), start)

	partial := decodeChunk(t, `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`)
	out := rt.Process(context.Background(), partial)
	assert.Empty(t, out, "an incomplete sentence must not yet be emitted")

	complete := decodeChunk(t, `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" there."}}`)
	out = rt.Process(context.Background(), complete)
	require.Len(t, out, 1)
	assert.Equal(t, "你好。", gjson.GetBytes(out[0], "delta.text").String())
}

func TestProcessFlushesRemainderOnContentBlockStop(t *testing.T) {
	cache := translationcache.New(10, time.Hour)
	cache.Set(translationcache.Key("en", "zh", "trailing"), "尾部")
	svc := NewService(nil, "", "", 0, cache, discardLogger())
	rt := NewResponseTranslator(svc, "en", "zh", discardLogger())

	start := decodeChunk(t, `{"type":"content_block_start","index":0,"content_block":{"type":"text"}}`)
	rt.Process(context.Background(), start)
	delta := decodeChunk(t, `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"trailing"}}`)
	rt.Process(context.Background(), delta)

	stop := decodeChunk(t, `{"type":"content_block_stop","index":0}`)
	out := rt.Process(context.Background(), stop)
	require.Len(t, out, 2, "a flushed remainder delta, followed by the original stop event")
	assert.Equal(t, "尾部", gjson.GetBytes(out[0], "delta.text").String())
	assert.Equal(t, stop.Raw, out[1])
}

func TestProcessStopWithNoBufferedRemainderPassesThrough(t *testing.T) {
	rt := NewResponseTranslator(nil, "en", "zh", discardLogger())
	stop := decodeChunk(t, `{"type":"content_block_stop","index":5}`)
	out := rt.Process(context.Background(), stop)
	require.Len(t, out, 1)
	assert.Equal(t, stop.Raw, out[0])
}
