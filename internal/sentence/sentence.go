// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package sentence accumulates streamed text deltas and yields complete
// sentences as soon as a terminator is seen, so a caller can translate
// whole sentences instead of arbitrary SSE-delta-sized fragments.
package sentence

import "strings"

// terminators are the characters, CJK and Latin, that end a sentence.
const terminators = "。？！.?!\n"

// Buffer accumulates text added via Add and splits off complete sentences
// as they become available. It is scoped to a single HTTP response and is
// not safe for concurrent use.
type Buffer struct {
	pending strings.Builder
}

// New returns an empty Buffer.
func New() *Buffer {
	return &Buffer{}
}

// Add appends delta to the buffer and returns any complete sentences it
// now contains, in order. Text after the last terminator remains buffered
// for the next call.
func (b *Buffer) Add(delta string) []string {
	if delta == "" {
		return nil
	}
	b.pending.WriteString(delta)
	text := b.pending.String()

	var sentences []string
	start := 0
	for i, r := range text {
		if !strings.ContainsRune(terminators, r) {
			continue
		}
		end := i + len(string(r))
		sentences = append(sentences, text[start:end])
		start = end
	}

	b.pending.Reset()
	if start < len(text) {
		b.pending.WriteString(text[start:])
	}
	return sentences
}

// Flush returns whatever text remains buffered, clearing the buffer. It is
// used when the stream ends and a trailing sentence fragment without a
// terminator must still be translated.
func (b *Buffer) Flush() string {
	remainder := b.pending.String()
	b.pending.Reset()
	return remainder
}

// Peek returns the text currently buffered without clearing it.
func (b *Buffer) Peek() string {
	return b.pending.String()
}

// Reset discards any buffered text.
func (b *Buffer) Reset() {
	b.pending.Reset()
}

// IsEmpty reports whether the buffer currently holds no text.
func (b *Buffer) IsEmpty() bool {
	return b.pending.Len() == 0
}

// Len returns the number of bytes currently buffered.
func (b *Buffer) Len() int {
	return b.pending.Len()
}
