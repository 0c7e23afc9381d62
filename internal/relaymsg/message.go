// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package relaymsg models the inbound chat request envelope and its
// content-block tagged union. It trims the teacher's much larger
// MessageContent/ContentBlockParam shape down to the roles and block
// variants the relay actually inspects: everything else is carried as
// opaque raw JSON and forwarded byte-for-byte.
package relaymsg

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	relayjson "github.com/envoyproxy/ai-gateway/internal/json"
)

// Role is the sender of a message in a chat request.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// BlockType identifies a content block variant.
type BlockType string

const (
	BlockTypeText       BlockType = "text"
	BlockTypeImage      BlockType = "image"
	BlockTypeToolUse    BlockType = "tool_use"
	BlockTypeToolResult BlockType = "tool_result"
)

// Request is the decoded chat request envelope. Fields the relay never
// inspects (tools, tool_choice, temperature, metadata, ...) are preserved
// in Extra, the original request bytes, and re-applied underneath the
// fields above whenever the request is re-marshaled, so a field this
// package doesn't model still reaches the upstream untouched.
type Request struct {
	Model     string        `json:"model"`
	Stream    bool          `json:"stream"`
	Messages  []Message     `json:"messages"`
	System    *SystemPrompt `json:"system,omitempty"`
	MaxTokens *float64      `json:"max_tokens,omitempty"`
	SessionID string        `json:"session_id,omitempty"`

	// Extra holds the complete original request body. Marshal overlays
	// the typed fields above onto it via sjson rather than building a
	// fresh object from them, so any field this package doesn't model is
	// forwarded byte-for-byte.
	Extra relayjson.RawMessage `json:"-"`
}

// requestFields mirrors Request's typed fields for the initial decode;
// kept separate from Request itself so Request can define its own
// UnmarshalJSON without infinite recursion.
type requestFields struct {
	Model     string        `json:"model"`
	Stream    bool          `json:"stream"`
	Messages  []Message     `json:"messages"`
	System    *SystemPrompt `json:"system,omitempty"`
	MaxTokens *float64      `json:"max_tokens,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
}

// UnmarshalJSON decodes the known envelope fields and separately retains
// the complete original body in Extra.
func (req *Request) UnmarshalJSON(data []byte) error {
	var fields requestFields
	if err := relayjson.Unmarshal(data, &fields); err != nil {
		return err
	}
	req.Model = fields.Model
	req.Stream = fields.Stream
	req.Messages = fields.Messages
	req.System = fields.System
	req.MaxTokens = fields.MaxTokens
	req.SessionID = fields.SessionID

	extra := make(relayjson.RawMessage, len(data))
	copy(extra, data)
	req.Extra = extra
	return nil
}

// MarshalJSON overlays the typed fields back onto Extra (the original
// body) via sjson, so translation's rewrite of Messages/System reaches the
// output while every other field -- tools, tool_choice, temperature,
// metadata, and anything else this package never modeled -- is forwarded
// exactly as the client sent it.
func (req Request) MarshalJSON() ([]byte, error) {
	base := req.Extra
	if base == nil {
		base = []byte("{}")
	}

	messagesJSON, err := relayjson.Marshal(req.Messages)
	if err != nil {
		return nil, err
	}
	out, err := sjson.SetRawBytes(base, "messages", messagesJSON)
	if err != nil {
		return nil, err
	}
	out, err = sjson.SetBytes(out, "model", req.Model)
	if err != nil {
		return nil, err
	}
	out, err = sjson.SetBytes(out, "stream", req.Stream)
	if err != nil {
		return nil, err
	}
	if req.System != nil {
		systemJSON, err := relayjson.Marshal(req.System)
		if err != nil {
			return nil, err
		}
		out, err = sjson.SetRawBytes(out, "system", systemJSON)
		if err != nil {
			return nil, err
		}
	}
	if req.MaxTokens != nil {
		out, err = sjson.SetBytes(out, "max_tokens", *req.MaxTokens)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Message is one entry in Request.Messages.
type Message struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

// SystemPrompt mirrors Content's string-or-blocks shape for the top-level
// "system" field.
type SystemPrompt = Content

// Content is either a bare string or an array of content blocks, matching
// the union the Anthropic-shaped wire format uses for "content" fields.
type Content struct {
	Text    string
	Blocks  []ContentBlock
	IsArray bool
}

// MarshalJSON emits a bare string when the content holds only text, and an
// array otherwise, mirroring the teacher's MessageContent.MarshalJSON
// preference order.
func (c Content) MarshalJSON() ([]byte, error) {
	if !c.IsArray {
		return relayjson.Marshal(c.Text)
	}
	return relayjson.Marshal(c.Blocks)
}

// UnmarshalJSON accepts either a JSON string or a JSON array of blocks.
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := gjson.ParseBytes(data)
	if trimmed.IsArray() {
		var blocks []ContentBlock
		if err := relayjson.Unmarshal(data, &blocks); err != nil {
			return err
		}
		c.Blocks = blocks
		c.IsArray = true
		return nil
	}
	var s string
	if err := relayjson.Unmarshal(data, &s); err != nil {
		return err
	}
	c.Text = s
	c.IsArray = false
	return nil
}

// ContentBlock is one element of a Content array. Only Text, Image,
// ToolUse and ToolResult are modeled; any other block type is preserved in
// Raw and re-emitted verbatim.
type ContentBlock struct {
	Type       BlockType
	Text       *TextBlock
	Image      *ImageBlock
	ToolUse    *ToolUseBlock
	ToolResult *ToolResultBlock
	Raw        relayjson.RawMessage
}

// TextBlock is a plain translatable text block.
type TextBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ImageBlock carries an opaque image payload; the relay never inspects or
// translates its contents.
type ImageBlock struct {
	Type   string          `json:"type"`
	Source relayjson.RawMessage `json:"source"`
}

// ToolUseBlock carries an opaque tool invocation; its Input is forwarded
// byte-for-byte.
type ToolUseBlock struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input relayjson.RawMessage `json:"input"`
}

// ToolResultBlock carries an opaque tool result.
type ToolResultBlock struct {
	Type      string               `json:"type"`
	ToolUseID string               `json:"tool_use_id"`
	Content   relayjson.RawMessage `json:"content"`
}

// UnmarshalJSON sniffs "type" with gjson before committing to a full decode,
// the same cheap-probe-before-decode idiom the teacher uses in its
// apischema package, and falls back to preserving the block as opaque Raw
// for any type this relay does not need to translate.
func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	blockType := BlockType(gjson.GetBytes(data, "type").String())
	b.Type = blockType
	switch blockType {
	case BlockTypeText:
		var t TextBlock
		if err := relayjson.Unmarshal(data, &t); err != nil {
			return err
		}
		b.Text = &t
	case BlockTypeImage:
		var img ImageBlock
		if err := relayjson.Unmarshal(data, &img); err != nil {
			return err
		}
		b.Image = &img
	case BlockTypeToolUse:
		var tu ToolUseBlock
		if err := relayjson.Unmarshal(data, &tu); err != nil {
			return err
		}
		b.ToolUse = &tu
	case BlockTypeToolResult:
		var tr ToolResultBlock
		if err := relayjson.Unmarshal(data, &tr); err != nil {
			return err
		}
		b.ToolResult = &tr
	default:
		raw := make(relayjson.RawMessage, len(data))
		copy(raw, data)
		b.Raw = raw
	}
	return nil
}

// MarshalJSON re-emits whichever variant is set, or Raw for unrecognized
// block types.
func (b ContentBlock) MarshalJSON() ([]byte, error) {
	switch {
	case b.Text != nil:
		return relayjson.Marshal(b.Text)
	case b.Image != nil:
		return relayjson.Marshal(b.Image)
	case b.ToolUse != nil:
		return relayjson.Marshal(b.ToolUse)
	case b.ToolResult != nil:
		return relayjson.Marshal(b.ToolResult)
	default:
		return b.Raw, nil
	}
}

// Clone returns a deep copy of req. Only nodes that translation might
// mutate (messages, their content blocks, and the system prompt) are
// actually deep-copied node-by-node; Extra is copied as a byte slice since
// it is never mutated in place.
func (req *Request) Clone() *Request {
	clone := *req
	clone.Messages = make([]Message, len(req.Messages))
	for i, m := range req.Messages {
		clone.Messages[i] = m.clone()
	}
	if req.System != nil {
		sys := req.System.clone()
		clone.System = &sys
	}
	if req.Extra != nil {
		extra := make(relayjson.RawMessage, len(req.Extra))
		copy(extra, req.Extra)
		clone.Extra = extra
	}
	return &clone
}

func (m Message) clone() Message {
	return Message{Role: m.Role, Content: m.Content.clone()}
}

func (c Content) clone() Content {
	clone := Content{Text: c.Text, IsArray: c.IsArray}
	if c.Blocks != nil {
		clone.Blocks = make([]ContentBlock, len(c.Blocks))
		for i, b := range c.Blocks {
			clone.Blocks[i] = b.clone()
		}
	}
	return clone
}

func (b ContentBlock) clone() ContentBlock {
	clone := b
	if b.Text != nil {
		t := *b.Text
		clone.Text = &t
	}
	return clone
}
