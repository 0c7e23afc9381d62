// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package sse frames and decodes the server-sent-event stream an upstream
// LLM provider returns, generalizing the single accumulated-buffer line
// scan the teacher uses to extract usage from a streaming response into a
// full incremental framer that yields every event, not just the ones
// carrying usage.
package sse

import (
	"bytes"

	"github.com/tidwall/gjson"

	relayjson "github.com/envoyproxy/ai-gateway/internal/json"
)

var (
	dataPrefix = []byte("data:")
	doneSuffix = []byte("[DONE]")
	eventSep   = []byte("\n\n")
)

// Event is one decoded SSE frame. Done is set for the literal "[DONE]"
// sentinel, which callers must forward to the client verbatim and never
// synthesize themselves.
type Event struct {
	Data []byte
	Done bool
}

// Framer accumulates raw bytes from an upstream response body and splits
// them into complete "\n\n"-delimited SSE frames, buffering any trailing
// partial frame for the next Feed call. It mirrors the buffered-bytes scan
// the teacher's anthropicToAnthropicTranslator uses, generalized from a
// single usage-extraction pass to a full event stream.
type Framer struct {
	buffered []byte
}

// NewFramer returns an empty Framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends chunk to the internal buffer and returns every complete
// event frame the buffer now contains. Frames without a non-empty data
// line (comments, keep-alives, bare event lines) are dropped rather than
// treated as fatal. The data payload is not JSON-decoded here; DecodeEvent
// does that.
func (f *Framer) Feed(chunk []byte) []Event {
	f.buffered = append(f.buffered, chunk...)

	var events []Event
	for {
		idx := bytes.Index(f.buffered, eventSep)
		if idx < 0 {
			break
		}
		frame := f.buffered[:idx]
		f.buffered = f.buffered[idx+len(eventSep):]
		if evt, ok := parseFrame(frame); ok {
			events = append(events, evt)
		}
	}
	return events
}

// Flush returns a final event parsed from whatever remains buffered, used
// when the upstream connection closes without a trailing blank line.
func (f *Framer) Flush() (Event, bool) {
	frame := f.buffered
	f.buffered = nil
	return parseFrame(frame)
}

func parseFrame(frame []byte) (Event, bool) {
	for _, line := range bytes.Split(frame, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if !bytes.HasPrefix(line, dataPrefix) {
			continue
		}
		data := bytes.TrimSpace(line[len(dataPrefix):])
		if len(data) == 0 {
			continue
		}
		if bytes.Equal(data, doneSuffix) {
			return Event{Done: true}, true
		}
		return Event{Data: data}, true
	}
	return Event{}, false
}

// ChunkType enumerates the streaming event "type" field. Any value not
// listed here is still decodable: Chunk.Raw carries the raw event
// instead of failing, so unrecognized event types pass through unchanged
// rather than aborting the stream.
type ChunkType string

const (
	ChunkTypeMessageStart      ChunkType = "message_start"
	ChunkTypeMessageDelta      ChunkType = "message_delta"
	ChunkTypeMessageStop       ChunkType = "message_stop"
	ChunkTypeContentBlockStart ChunkType = "content_block_start"
	ChunkTypeContentBlockDelta ChunkType = "content_block_delta"
	ChunkTypeContentBlockStop  ChunkType = "content_block_stop"
	ChunkTypePing              ChunkType = "ping"
	ChunkTypeError             ChunkType = "error"
)

// ContentBlockType identifies the type of the content block a
// content_block_start event introduces.
type ContentBlockType string

const (
	ContentBlockTypeText    ContentBlockType = "text"
	ContentBlockTypeToolUse ContentBlockType = "tool_use"
)

// DeltaType identifies the shape of a content_block_delta's nested delta.
type DeltaType string

const (
	DeltaTypeText       DeltaType = "text_delta"
	DeltaTypeInputJSON  DeltaType = "input_json_delta"
)

// Chunk is a decoded streaming event. Exactly one of the pointer fields is
// set for message_start, message_delta and the three content_block_* types;
// none is set for message_stop, ping, error or an unrecognized type. Raw
// always holds the original bytes so an
// unrecognized type, or a type the caller doesn't otherwise need to
// inspect, can still be forwarded verbatim.
type Chunk struct {
	Type ChunkType
	Raw  []byte

	MessageStart      *MessageStart
	MessageDelta      *MessageDelta
	ContentBlockStart *ContentBlockStart
	ContentBlockDelta *ContentBlockDelta
	ContentBlockStop  *ContentBlockStop
}

// MessageStart carries the initial usage snapshot for a response.
type MessageStart struct {
	Message struct {
		Model string          `json:"model"`
		Usage relayjson.RawMessage `json:"usage"`
	} `json:"message"`
}

// MessageDelta carries the incremental usage update near the end of a
// response.
type MessageDelta struct {
	Usage relayjson.RawMessage `json:"usage"`
}

// ContentBlockStart introduces a new content block at Index, whose type
// decides how subsequent content_block_delta events for the same index
// should be interpreted.
type ContentBlockStart struct {
	Index        int `json:"index"`
	ContentBlock struct {
		Type ContentBlockType `json:"type"`
	} `json:"content_block"`
}

// ContentBlockStop closes the content block at Index; any buffered,
// untranslated sentence fragment for that index must be flushed before
// this event reaches the client.
type ContentBlockStop struct {
	Index int `json:"index"`
}

// ContentBlockDelta carries one incremental update to the content block at
// Index.
type ContentBlockDelta struct {
	Index int `json:"index"`
	Delta struct {
		Type        DeltaType `json:"type"`
		Text        string    `json:"text"`
		PartialJSON string    `json:"partial_json"`
	} `json:"delta"`
}

// DecodeEvent decodes the data payload of a non-[DONE] Event into a Chunk.
// It sniffs "type" with gjson before committing to a full decode, the same
// probe-before-decode idiom the teacher's apischema package uses, and
// never errors on an unrecognized type: such events decode to a bare Chunk
// carrying only Type and Raw, which the caller forwards unchanged.
func DecodeEvent(data []byte) (Chunk, error) {
	chunkType := ChunkType(gjson.GetBytes(data, "type").String())
	chunk := Chunk{Type: chunkType, Raw: data}

	switch chunkType {
	case ChunkTypeMessageStart:
		var ms MessageStart
		if err := relayjson.Unmarshal(data, &ms); err != nil {
			return chunk, err
		}
		chunk.MessageStart = &ms
	case ChunkTypeMessageDelta:
		var md MessageDelta
		if err := relayjson.Unmarshal(data, &md); err != nil {
			return chunk, err
		}
		chunk.MessageDelta = &md
	case ChunkTypeContentBlockStart:
		var cbs ContentBlockStart
		if err := relayjson.Unmarshal(data, &cbs); err != nil {
			return chunk, err
		}
		chunk.ContentBlockStart = &cbs
	case ChunkTypeContentBlockDelta:
		var cbd ContentBlockDelta
		if err := relayjson.Unmarshal(data, &cbd); err != nil {
			return chunk, err
		}
		chunk.ContentBlockDelta = &cbd
	case ChunkTypeContentBlockStop:
		var cbs ContentBlockStop
		if err := relayjson.Unmarshal(data, &cbs); err != nil {
			return chunk, err
		}
		chunk.ContentBlockStop = &cbs
	}
	return chunk, nil
}
