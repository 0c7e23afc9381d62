// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package langdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPrimarilyChinese(t *testing.T) {
	assert.True(t, IsPrimarilyChinese("你好，世界，这是一段中文文本"))
	assert.False(t, IsPrimarilyChinese("hello world, this is english"))
	assert.False(t, IsPrimarilyChinese("1234567890"))
}

func TestIsPrimarilyEnglish(t *testing.T) {
	assert.True(t, IsPrimarilyEnglish("hello world, this is plain english text"))
	assert.False(t, IsPrimarilyEnglish("你好，世界，这是一段中文文本"))
}

func TestDetectPrimaryLanguage(t *testing.T) {
	assert.Equal(t, LanguageChinese, DetectPrimaryLanguage("你好世界"))
	assert.Equal(t, LanguageEnglish, DetectPrimaryLanguage("hello there friend"))
	assert.Equal(t, LanguageUnknown, DetectPrimaryLanguage("12345 !!! ---"))
	assert.Equal(t, LanguageUnknown, DetectPrimaryLanguage(""))
}

func TestDetectPrimaryLanguageMixedWhenNeitherThresholdClears(t *testing.T) {
	// 2 of 16 non-whitespace chars are CJK (12.5%) and 5 of 16 are ASCII
	// letters (31.25%): neither ratio exceeds its threshold, but both
	// scripts are present.
	assert.Equal(t, LanguageMixed, DetectPrimaryLanguage("你好 hello 12345 !!!!"))
}

func TestDetectPrimaryLanguageStrictGreaterThan(t *testing.T) {
	// 3 of 10 non-whitespace chars are CJK (30%) and 5 of 10 are ASCII
	// letters (50%): both sit exactly at their threshold, which the spec
	// requires to be exceeded ("> 0.30" / "> 0.50"), not merely met.
	assert.Equal(t, LanguageMixed, DetectPrimaryLanguage("你好吗 abcde 12"))
}
