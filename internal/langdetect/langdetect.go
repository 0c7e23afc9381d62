// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package langdetect classifies text as primarily Chinese, primarily
// English, a mix of both, or unknown, by counting CJK versus ASCII-letter
// runes against the count of non-whitespace characters. It is intentionally
// coarse: good enough to decide whether a translation call is worth making,
// not a general-purpose language identifier.
package langdetect

import "unicode"

const (
	// chineseRatioThreshold is the fraction of non-whitespace characters
	// that must be CJK for text to be classified as primarily Chinese.
	chineseRatioThreshold = 0.30
	// englishRatioThreshold is the fraction of non-whitespace characters
	// that must be ASCII letters for text to be classified as primarily
	// English.
	englishRatioThreshold = 0.50
)

// Language is the coarse classification returned by DetectPrimaryLanguage.
type Language string

const (
	// LanguageChinese is returned when the CJK ratio exceeds
	// chineseRatioThreshold.
	LanguageChinese Language = "zh"
	// LanguageEnglish is returned when the ASCII-letter ratio exceeds
	// englishRatioThreshold and Chinese does not clear its own threshold.
	LanguageEnglish Language = "en"
	// LanguageMixed is returned when neither threshold is exceeded but
	// both Chinese and English characters are present.
	LanguageMixed Language = "mixed"
	// LanguageUnknown is returned when neither threshold is exceeded and
	// the text contains neither Chinese nor English characters, e.g. text
	// that is mostly punctuation, digits, or code.
	LanguageUnknown Language = "unknown"
)

// IsPrimarilyChinese reports whether the CJK-character ratio, among all
// non-whitespace characters, exceeds chineseRatioThreshold.
func IsPrimarilyChinese(text string) bool {
	cjk, _, nonSpace := countChars(text)
	if nonSpace == 0 {
		return false
	}
	return float64(cjk)/float64(nonSpace) > chineseRatioThreshold
}

// IsPrimarilyEnglish reports whether the ASCII-letter ratio, among all
// non-whitespace characters, exceeds englishRatioThreshold.
func IsPrimarilyEnglish(text string) bool {
	_, ascii, nonSpace := countChars(text)
	if nonSpace == 0 {
		return false
	}
	return float64(ascii)/float64(nonSpace) > englishRatioThreshold
}

// DetectPrimaryLanguage classifies text: chinese if the CJK ratio exceeds
// chineseRatioThreshold, else english if the ASCII-letter ratio exceeds
// englishRatioThreshold, else mixed if both Chinese and English characters
// are present, else unknown. Empty or all-whitespace text returns unknown.
func DetectPrimaryLanguage(text string) Language {
	cjk, ascii, nonSpace := countChars(text)
	if nonSpace == 0 {
		return LanguageUnknown
	}
	if float64(cjk)/float64(nonSpace) > chineseRatioThreshold {
		return LanguageChinese
	}
	if float64(ascii)/float64(nonSpace) > englishRatioThreshold {
		return LanguageEnglish
	}
	if cjk > 0 && ascii > 0 {
		return LanguageMixed
	}
	return LanguageUnknown
}

// ContainsChinese reports whether text contains at least one character in
// the CJK Unified Ideographs basic range.
func ContainsChinese(text string) bool {
	for _, r := range text {
		if isCJK(r) {
			return true
		}
	}
	return false
}

// countChars returns the count of CJK runes, the count of ASCII letter
// runes, and the count of non-whitespace runes in text.
func countChars(text string) (cjk, ascii, nonSpace int) {
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		nonSpace++
		switch {
		case isCJK(r):
			cjk++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			ascii++
		}
	}
	return
}

// isCJK reports whether r falls in the CJK Unified Ideographs basic range
// (U+4E00-U+9FA5).
func isCJK(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FA5
}
