// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translate

import (
	"context"
	"log/slog"

	"github.com/tidwall/sjson"

	"github.com/envoyproxy/ai-gateway/internal/sentence"
	"github.com/envoyproxy/ai-gateway/internal/sse"
)

// ResponseTranslator is C7: per-HTTP-response state that watches a
// decoded SSE event stream and rewrites text_delta events, sentence by
// sentence, from sourceLang to targetLang. All other event types --
// message_start/stop, input_json_delta (tool-call argument streaming),
// ping, error, and anything unrecognized -- pass through byte-for-byte.
// A ResponseTranslator must not be shared across requests: its buffers
// are keyed by content-block index, which is only meaningful within one
// response.
type ResponseTranslator struct {
	svc        *Service
	sourceLang string
	targetLang string
	logger     *slog.Logger

	blockTypes map[int]sse.ContentBlockType
	buffers    map[int]*sentence.Buffer
}

// NewResponseTranslator constructs a ResponseTranslator for a single
// response. sourceLang/targetLang describe the egress direction (e.g. "en"
// to "zh"), which is the reverse of the ingress direction TranslateRequest
// uses for the same account.
func NewResponseTranslator(svc *Service, sourceLang, targetLang string, logger *slog.Logger) *ResponseTranslator {
	return &ResponseTranslator{
		svc:        svc,
		sourceLang: sourceLang,
		targetLang: targetLang,
		logger:     logger,
		blockTypes: make(map[int]sse.ContentBlockType),
		buffers:    make(map[int]*sentence.Buffer),
	}
}

// Process handles one decoded chunk and returns the raw event payloads to
// forward to the client in its place: usually exactly one (the original
// event, unchanged), zero (a delta whose text is still accumulating in the
// sentence buffer and has nothing complete to emit yet), one per completed
// sentence (a text delta that completes one or more sentences), or two (a
// content_block_stop preceded by one final delta carrying the flushed,
// translated remainder of the block).
func (rt *ResponseTranslator) Process(ctx context.Context, chunk sse.Chunk) [][]byte {
	switch chunk.Type {
	case sse.ChunkTypeContentBlockStart:
		return rt.onContentBlockStart(chunk)
	case sse.ChunkTypeContentBlockDelta:
		return rt.onContentBlockDelta(ctx, chunk)
	case sse.ChunkTypeContentBlockStop:
		return rt.onContentBlockStop(ctx, chunk)
	default:
		return [][]byte{chunk.Raw}
	}
}

func (rt *ResponseTranslator) onContentBlockStart(chunk sse.Chunk) [][]byte {
	if chunk.ContentBlockStart != nil {
		index := chunk.ContentBlockStart.Index
		blockType := chunk.ContentBlockStart.ContentBlock.Type
		rt.blockTypes[index] = blockType
		if blockType == sse.ContentBlockTypeText {
			rt.buffers[index] = sentence.New()
		}
	}
	return [][]byte{chunk.Raw}
}

func (rt *ResponseTranslator) onContentBlockDelta(ctx context.Context, chunk sse.Chunk) [][]byte {
	delta := chunk.ContentBlockDelta
	if delta == nil {
		return [][]byte{chunk.Raw}
	}
	index := delta.Index
	// tool_use blocks stream input_json_delta, never text_delta; these are
	// opaque to translation and must reach the client byte-identical.
	if rt.blockTypes[index] != sse.ContentBlockTypeText || delta.Delta.Type != sse.DeltaTypeText {
		return [][]byte{chunk.Raw}
	}

	buf := rt.buffers[index]
	if buf == nil {
		buf = sentence.New()
		rt.buffers[index] = buf
	}
	sentences := buf.Add(delta.Delta.Text)
	if len(sentences) == 0 {
		return nil
	}

	var events [][]byte
	for _, s := range sentences {
		events = append(events, rt.emitTranslatedDelta(ctx, chunk.Raw, s))
	}
	return events
}

func (rt *ResponseTranslator) onContentBlockStop(ctx context.Context, chunk sse.Chunk) [][]byte {
	if chunk.ContentBlockStop == nil {
		return [][]byte{chunk.Raw}
	}
	index := chunk.ContentBlockStop.Index
	buf := rt.buffers[index]
	if buf == nil || buf.IsEmpty() {
		delete(rt.buffers, index)
		return [][]byte{chunk.Raw}
	}
	remainder := buf.Flush()
	delete(rt.buffers, index)

	// Synthesize a final content_block_delta carrying the translated
	// remainder, immediately followed by the original (untouched)
	// content_block_stop event, so the remainder always reaches the
	// client before the block is declared closed.
	deltaEvent := buildTextDeltaEvent(index, remainder)
	translatedEvent := rt.emitTranslatedDelta(ctx, deltaEvent, remainder)
	return [][]byte{translatedEvent, chunk.Raw}
}

// emitTranslatedDelta translates text and returns a content_block_delta
// payload derived from template (normally the triggering event's own raw
// bytes) with delta.text replaced by the translation. On translation
// failure the original text is substituted instead, matching spec.md's
// requirement that translation errors degrade silently rather than
// surface to the client.
func (rt *ResponseTranslator) emitTranslatedDelta(ctx context.Context, template []byte, text string) []byte {
	translated := translateOrOriginal(ctx, rt.svc, rt.sourceLang, rt.targetLang, text, rt.logger)
	payload, err := sjson.SetBytes(template, "delta.text", translated)
	if err != nil {
		return template
	}
	return payload
}

func buildTextDeltaEvent(index int, text string) []byte {
	payload, _ := sjson.SetBytes([]byte(`{"type":"content_block_delta"}`), "index", index)
	payload, _ = sjson.SetBytes(payload, "delta.type", string(sse.DeltaTypeText))
	payload, _ = sjson.SetBytes(payload, "delta.text", text)
	return payload
}
