// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package codeprotect replaces fenced and inline code spans with stable
// placeholders so a translation call cannot corrupt them, and restores the
// original code afterwards.
package codeprotect

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	fencedPlaceholderFormat = "__CODE_BLOCK_%d__"
	inlinePlaceholderFormat = "__INLINE_CODE_%d__"
)

var (
	fencedBlockPattern = regexp.MustCompile("(?s)```.*?```")
	inlineCodePattern  = regexp.MustCompile("`[^`]+`")
)

// Placeholders is the ordered mapping from synthetic token to the original
// code substring it replaced. Fenced blocks are numbered before inline
// spans, and the counter is monotonic across both kinds.
type Placeholders struct {
	keys   []string
	values map[string]string
}

func newPlaceholders() *Placeholders {
	return &Placeholders{values: make(map[string]string)}
}

func (p *Placeholders) add(key, value string) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Len returns the number of placeholders recorded.
func (p *Placeholders) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Extract replaces fenced code blocks, then inline code spans, with
// monotonically-numbered placeholders and returns the cleaned text plus the
// map needed to restore it.
func Extract(text string) (string, *Placeholders) {
	placeholders := newPlaceholders()
	if text == "" {
		return "", placeholders
	}

	counter := 0
	clean := fencedBlockPattern.ReplaceAllStringFunc(text, func(match string) string {
		key := placeholderKey(fencedPlaceholderFormat, counter)
		counter++
		placeholders.add(key, match)
		return key
	})
	clean = inlineCodePattern.ReplaceAllStringFunc(clean, func(match string) string {
		key := placeholderKey(inlinePlaceholderFormat, counter)
		counter++
		placeholders.add(key, match)
		return key
	})
	return clean, placeholders
}

// Restore performs a literal global substitution of every placeholder back
// to its original code substring. A naive split-and-join is used instead of
// a single regex pass so that a translator echoing a placeholder more than
// once is still handled correctly.
func Restore(translated string, placeholders *Placeholders) string {
	if placeholders.Len() == 0 {
		return translated
	}
	result := translated
	for _, key := range placeholders.keys {
		result = strings.ReplaceAll(result, key, placeholders.values[key])
	}
	return result
}

// IsCodeOnly reports whether text is entirely code: after extracting and
// stripping every placeholder, only whitespace remains. Text containing no
// code span at all, including empty or all-whitespace text, is never
// code-only.
func IsCodeOnly(text string) bool {
	clean, placeholders := Extract(text)
	if placeholders.Len() == 0 {
		return false
	}
	for _, key := range placeholders.keys {
		clean = strings.ReplaceAll(clean, key, "")
	}
	return strings.TrimSpace(clean) == ""
}

// CountCodeBlocks returns the number of fenced and inline code spans in
// text. Fenced content is removed before inline spans are counted so that
// back-ticks embedded in fenced code are never double-counted.
func CountCodeBlocks(text string) (fenced, inline int) {
	fenced = len(fencedBlockPattern.FindAllString(text, -1))
	withoutFenced := fencedBlockPattern.ReplaceAllString(text, "")
	inline = len(inlineCodePattern.FindAllString(withoutFenced, -1))
	return
}

func placeholderKey(format string, n int) string {
	return fmt.Sprintf(format, n)
}
