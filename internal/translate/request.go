// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translate

import (
	"context"
	"log/slog"

	"github.com/envoyproxy/ai-gateway/internal/account"
	"github.com/envoyproxy/ai-gateway/internal/langdetect"
	"github.com/envoyproxy/ai-gateway/internal/relaymsg"
)

// TranslateRequest is C6: when acct.TranslationEnabled() is false, req is
// returned unchanged (the identity case, and the original pointer -- no
// copy is made since nothing will be mutated). When enabled, a deep copy
// of req is translated and returned; the caller's original envelope is
// never mutated. Only text blocks on user-role messages are translated;
// every other message, role, and block type is carried through byte-for-
// byte. Any translation failure for an individual block degrades
// gracefully: that block's original text is kept and the rest of the
// request is still processed.
func TranslateRequest(ctx context.Context, svc *Service, acct account.Account, req *relaymsg.Request, logger *slog.Logger) *relaymsg.Request {
	if !acct.TranslationEnabled() {
		return req
	}

	sourceLang := acct.TranslationSourceLang
	targetLang := acct.TranslationTargetLang
	if sourceLang == "" {
		sourceLang = "zh"
	}
	if targetLang == "" {
		targetLang = "en"
	}

	clone := req.Clone()
	for i := range clone.Messages {
		msg := &clone.Messages[i]
		if msg.Role != relaymsg.RoleUser {
			continue
		}
		translateContent(ctx, svc, sourceLang, targetLang, &msg.Content, logger)
	}
	return clone
}

func translateContent(ctx context.Context, svc *Service, sourceLang, targetLang string, content *relaymsg.Content, logger *slog.Logger) {
	if !content.IsArray {
		content.Text = translateRequestText(ctx, svc, sourceLang, targetLang, content.Text, logger)
		return
	}
	for i := range content.Blocks {
		block := &content.Blocks[i]
		if block.Type != relaymsg.BlockTypeText || block.Text == nil {
			continue
		}
		block.Text.Text = translateRequestText(ctx, svc, sourceLang, targetLang, block.Text.Text, logger)
	}
}

// translateRequestText is C6's text sub-pipeline. Content that is empty or
// contains no Chinese character is returned unchanged without calling C5 at
// all: the common case of an English-only prompt never pays for an upstream
// round trip. This guard is specific to the ingress direction; the egress
// path (C7) translates en->zh and deliberately omits it.
func translateRequestText(ctx context.Context, svc *Service, sourceLang, targetLang, text string, logger *slog.Logger) string {
	if text == "" || !langdetect.ContainsChinese(text) {
		return text
	}
	return translateOrOriginal(ctx, svc, sourceLang, targetLang, text, logger)
}

// translateOrOriginal calls C5 and falls back to the original text on any
// failure (graceful degradation -- translation is always best-effort and
// must never block the relay's own request/response handling).
func translateOrOriginal(ctx context.Context, svc *Service, sourceLang, targetLang, text string, logger *slog.Logger) string {
	if text == "" {
		return text
	}
	translated, err := svc.Translate(ctx, sourceLang, targetLang, text)
	if err != nil {
		if logger != nil {
			logger.Warn("translation failed, forwarding original text", "error", err)
		}
		return text
	}
	return translated
}
