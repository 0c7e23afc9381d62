// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package translate implements the translation subsystem: a translation
// service that calls a dedicated "translator account" upstream (C5), a
// request translator that rewrites inbound user prompts zh->en (C6), and a
// response translator that rewrites outbound SSE text deltas en->zh (C7).
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/envoyproxy/ai-gateway/internal/account"
	"github.com/envoyproxy/ai-gateway/internal/codeprotect"
	"github.com/envoyproxy/ai-gateway/internal/relayerr"
	"github.com/envoyproxy/ai-gateway/internal/translationcache"
)

// supportedLanguages is the set of language codes the translation service
// accepts on either side of a translate call. Any pair outside this set
// fails with ErrUnsupportedLanguage rather than being forwarded upstream.
var supportedLanguages = map[string]bool{
	"zh": true,
	"en": true,
}

// defaultTranslateTimeout bounds a single upstream translation call. It is
// intentionally far shorter than the relay's own request timeout: a slow
// translation should never be allowed to dominate the overall response
// latency budget, and the caller falls back to the original text on
// timeout rather than waiting longer.
const defaultTranslateTimeout = 60 * time.Second

// systemPromptTemplate instructs the translator model to preserve
// placeholders, whitespace and tone, and to return nothing but the
// translation itself.
const systemPromptTemplate = "You are a professional translator. Translate the user's text from %s to %s. " +
	"Preserve any tokens that look like __CODE_BLOCK_<n>__ or __INLINE_CODE_<n>__ exactly as written, " +
	"do not translate or alter them. Preserve the original whitespace, line breaks and tone. " +
	"Respond with only the translated text and nothing else."

// qwen3ModelPrefix identifies model names that support a chain-of-thought
// toggle that must be disabled for translation calls, where a visible
// reasoning trace would corrupt the expected plain-text output.
const qwen3ModelPrefix = "qwen3"

// Service is the C5 translation service: a side channel C6 and C7 call,
// deduplicated through a shared cache, against the same account-credential
// contract the relay core uses for serving accounts, but resolved against
// a dedicated translator account rather than the caller's own account.
type Service struct {
	resolver  account.Resolver
	accountID string
	model     string
	maxTokens int
	cache     *translationcache.Cache
	logger    *slog.Logger
}

// NewService constructs a Service that resolves its upstream credentials
// from accountID via resolver on every call (never cached across calls,
// since the account record can change), using model for the chat
// completion and cache to deduplicate identical (sourceLang, targetLang,
// text) requests.
func NewService(resolver account.Resolver, accountID, model string, maxTokens int, cache *translationcache.Cache, logger *slog.Logger) *Service {
	return &Service{
		resolver:  resolver,
		accountID: accountID,
		model:     model,
		maxTokens: maxTokens,
		cache:     cache,
		logger:    logger,
	}
}

// Translate translates text from sourceLang to targetLang. Fenced and
// inline code spans are protected before the call and restored after, so
// the upstream model never sees (and cannot corrupt) literal code. A
// cache-hit short-circuits the upstream call entirely. Any failure --
// misconfigured translator account, transport error, malformed response,
// or timeout -- is returned as an error for the caller to log; spec.md's
// error handling design requires callers to fall back to the original
// text rather than surface these to the end client.
func (s *Service) Translate(ctx context.Context, sourceLang, targetLang, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if sourceLang == targetLang {
		return text, nil
	}
	if !supportedLanguages[sourceLang] || !supportedLanguages[targetLang] {
		return "", relayerr.Wrap(relayerr.ErrUnsupportedLanguage, fmt.Sprintf("%s->%s", sourceLang, targetLang))
	}
	clean, placeholders := codeprotect.Extract(text)
	if codeprotect.IsCodeOnly(text) {
		return text, nil
	}

	key := translationcache.Key(sourceLang, targetLang, clean)
	if cached, ok := s.cache.Get(key); ok {
		return codeprotect.Restore(cached, placeholders), nil
	}

	translated, err := s.translateUpstream(ctx, sourceLang, targetLang, clean)
	if err != nil {
		return "", err
	}

	s.cache.Set(key, translated)
	return codeprotect.Restore(translated, placeholders), nil
}

func (s *Service) translateUpstream(ctx context.Context, sourceLang, targetLang, text string) (string, error) {
	if s.accountID == "" {
		return "", relayerr.ErrAccountNotConfigured
	}
	acct, err := s.resolver.ResolveAccount(ctx, s.accountID)
	if err != nil {
		return "", relayerr.Wrap(relayerr.ErrAccountNotFound, err.Error())
	}
	if acct.APIKey == "" {
		return "", relayerr.ErrAccountMissingKey
	}
	if acct.BaseAPI == "" {
		return "", relayerr.ErrAccountMissingBaseURL
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTranslateTimeout)
	defer cancel()

	client := newClient(acct)

	params := openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(sourceLang, targetLang)),
			openai.UserMessage(text),
		},
	}
	if s.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(s.maxTokens))
	}
	if isQwen3(s.model) {
		// qwen3 models emit a visible reasoning trace unless explicitly
		// disabled; a translation call wants only the final text.
		params.SetExtraFields(map[string]any{"enable_thinking": false})
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return "", relayerr.Wrap(relayerr.ErrTranslationTimeout, err.Error())
		}
		return "", relayerr.Wrap(relayerr.ErrTranslationHTTP, err.Error())
	}
	if len(resp.Choices) == 0 {
		return "", relayerr.Wrap(relayerr.ErrTranslationParse, "no choices in translation response")
	}
	return resp.Choices[0].Message.Content, nil
}

func newClient(acct account.Account) *openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(acct.APIKey),
		option.WithBaseURL(acct.BaseAPI),
	}
	httpClient := &http.Client{Timeout: defaultTranslateTimeout}
	if acct.Proxy != "" {
		if proxyURL, err := url.Parse(acct.Proxy); err == nil {
			httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}
	opts = append(opts, option.WithHTTPClient(httpClient))
	if acct.UserAgent != "" {
		opts = append(opts, option.WithHeader("User-Agent", acct.UserAgent))
	}
	client := openai.NewClient(opts...)
	return &client
}

func systemPrompt(sourceLang, targetLang string) string {
	return fmt.Sprintf(systemPromptTemplate, sourceLang, targetLang)
}

func isQwen3(model string) bool {
	return len(model) >= len(qwen3ModelPrefix) && model[:len(qwen3ModelPrefix)] == qwen3ModelPrefix
}
