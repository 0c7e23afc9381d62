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

	"github.com/envoyproxy/ai-gateway/internal/account"
	"github.com/envoyproxy/ai-gateway/internal/relaymsg"
	"github.com/envoyproxy/ai-gateway/internal/translationcache"
)

func TestTranslateRequestIdentityWhenDisabled(t *testing.T) {
	req := &relaymsg.Request{
		Messages: []relaymsg.Message{{Role: relaymsg.RoleUser, Content: relaymsg.Content{Text: "你好"}}},
	}
	acct := account.Account{}
	got := TranslateRequest(context.Background(), nil, acct, req, nil)
	assert.Same(t, req, got, "the identity case must return the original pointer, not a copy")
}

func TestTranslateRequestOnlyTranslatesUserMessages(t *testing.T) {
	cache := translationcache.New(10, time.Hour)
	cache.Set(translationcache.Key("zh", "en", "你好"), "hello")

	svc := NewService(nil, "", "", 0, cache, discardLogger())
	acct := account.Account{EnableTranslation: true, TranslationSourceLang: "zh", TranslationTargetLang: "en"}

	req := &relaymsg.Request{
		Messages: []relaymsg.Message{
			{Role: relaymsg.RoleAssistant, Content: relaymsg.Content{Text: "你好"}},
			{Role: relaymsg.RoleUser, Content: relaymsg.Content{Text: "你好"}},
		},
	}
	got := TranslateRequest(context.Background(), svc, acct, req, nil)

	assert.NotSame(t, req, got)
	assert.Equal(t, "你好", got.Messages[0].Content.Text, "assistant messages are forwarded untranslated")
	assert.Equal(t, "hello", got.Messages[1].Content.Text)
	assert.Equal(t, "你好", req.Messages[1].Content.Text, "the original request must not be mutated")
}

func TestTranslateRequestDegradesToOriginalOnFailure(t *testing.T) {
	emptyResolver := account.NewStaticResolver(nil, nil)
	svc := NewService(emptyResolver, "missing-account", "model", 0, translationcache.New(10, time.Hour), discardLogger())
	acct := account.Account{EnableTranslation: true}

	req := &relaymsg.Request{
		Messages: []relaymsg.Message{{Role: relaymsg.RoleUser, Content: relaymsg.Content{Text: "你好"}}},
	}
	got := TranslateRequest(context.Background(), svc, acct, req, nil)
	assert.Equal(t, "你好", got.Messages[0].Content.Text)
}

func TestTranslateRequestSkipsContentWithNoChineseCharacter(t *testing.T) {
	// A Service configured to fail any real call: if this test passes,
	// it is because the pure-English message never reached svc.Translate.
	emptyResolver := account.NewStaticResolver(nil, nil)
	svc := NewService(emptyResolver, "missing-account", "model", 0, translationcache.New(10, time.Hour), discardLogger())
	acct := account.Account{EnableTranslation: true, TranslationSourceLang: "zh", TranslationTargetLang: "en"}

	req := &relaymsg.Request{
		Messages: []relaymsg.Message{{Role: relaymsg.RoleUser, Content: relaymsg.Content{Text: "hello, how are you today?"}}},
	}
	got := TranslateRequest(context.Background(), svc, acct, req, nil)
	assert.Equal(t, "hello, how are you today?", got.Messages[0].Content.Text)
}
