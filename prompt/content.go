package prompt

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// ContentBlock represents a polymorphic segment of message content. Concrete
// block types implement the unexported isBlock marker enabling a closed set.
type ContentBlock interface{ isBlock() }

// TextBlock is a plain text content segment.
type TextBlock struct {
	Text string
}

func (TextBlock) isBlock() {}

// ImageBlock is an image attachment, either inline base64 or a remote URL.
type ImageBlock struct {
	Source MediaSource
}

func (ImageBlock) isBlock() {}

// DocumentBlock is a document attachment (e.g. PDF), inline or remote.
type DocumentBlock struct {
	Source MediaSource
}

func (DocumentBlock) isBlock() {}

// ToolUseBlock is a tool invocation requested by the model.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input string // raw JSON argument payload
}

func (ToolUseBlock) isBlock() {}

// ToolResultBlock carries the outcome of a tool invocation back to the model.
type ToolResultBlock struct {
	ToolUseID string
	Content   any
	IsError   bool
}

func (ToolResultBlock) isBlock() {}

// SourceType discriminates how media bytes are referenced.
type SourceType string

const (
	// SourceBase64 means the payload is inlined as base64 data.
	SourceBase64 SourceType = "base64"
	// SourceURL means the payload is fetched from a remote URL.
	SourceURL SourceType = "url"
)

// MediaSource describes where image/document bytes come from.
type MediaSource struct {
	Type      SourceType
	MediaType string // MIME type for base64 sources
	Data      string // base64 payload
	URL       string // remote location for url sources
}

// dataURIPattern matches data:<mediaType>[;base64],<payload>.
var dataURIPattern = regexp.MustCompile(`^data:([^;,]*)(;base64)?,(.*)$`)

// NormalizeSource converts shorthand media references into a MediaSource.
// Strings starting with "data:" are parsed as data URIs; any other string is
// treated as a remote URL. Maps with data+mediaType keys are pre-formed
// base64 sources. An already normalized MediaSource passes through unchanged,
// and an unparseable data URI falls back to being treated as a plain URL.
func NormalizeSource(v any) MediaSource {
	switch src := v.(type) {
	case MediaSource:
		return src
	case string:
		if m := dataURIPattern.FindStringSubmatch(src); m != nil {
			mediaType := m[1]
			if mediaType == "" {
				mediaType = "text/plain"
			}
			return MediaSource{Type: SourceBase64, MediaType: mediaType, Data: m[3]}
		}
		return MediaSource{Type: SourceURL, URL: src}
	case map[string]any:
		data, _ := src["data"].(string)
		mediaType, ok := src["mediaType"].(string)
		if !ok {
			mediaType, _ = src["media_type"].(string)
		}
		if data != "" && mediaType != "" {
			return MediaSource{Type: SourceBase64, MediaType: mediaType, Data: data}
		}
		if url, ok := src["url"].(string); ok {
			return MediaSource{Type: SourceURL, URL: url}
		}
	}
	return MediaSource{}
}

// recognized shorthand keys, emitted in this fixed order.
var shorthandKeys = []string{"text", "image", "document"}

// NormalizeContent converts heterogeneous shorthand content into a canonical
// ordered list of content blocks. Accepted inputs: a bare string, a map with
// text/image/document keys, tool-use and tool-result maps recognized by key
// shape, arrays mixing any of the above, a single ContentBlock, or an already
// normalized []ContentBlock. The transform is idempotent: feeding its own
// output back in returns an equal slice.
func NormalizeContent(v any) ([]ContentBlock, error) {
	switch content := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []ContentBlock{TextBlock{Text: content}}, nil
	case ContentBlock:
		return []ContentBlock{content}, nil
	case []ContentBlock:
		out := make([]ContentBlock, len(content))
		copy(out, content)
		return out, nil
	case map[string]any:
		return normalizeMap(content)
	case []any:
		var out []ContentBlock
		for _, item := range content {
			blocks, err := NormalizeContent(item)
			if err != nil {
				return nil, err
			}
			out = append(out, blocks...)
		}
		return out, nil
	}
	return nil, &TransformError{Field: "content", Message: fmt.Sprintf("unsupported content shape %T", v)}
}

// normalizeMap resolves a shorthand hash into blocks, honoring the fixed
// key order text, image, document. Tool-use and tool-result shapes are
// detected first by their distinguishing keys.
func normalizeMap(m map[string]any) ([]ContentBlock, error) {
	if id := stringKey(m, "toolUseId", "tool_use_id"); id != "" {
		return []ContentBlock{ToolResultBlock{
			ToolUseID: id,
			Content:   firstKey(m, "content", "output", "result"),
			IsError:   boolKey(m, "isError", "is_error"),
		}}, nil
	}
	if name, ok := m["name"].(string); ok {
		if _, hasInput := m["input"]; hasInput {
			input := ""
			switch in := m["input"].(type) {
			case string:
				input = in
			default:
				input = encodeJSON(in)
			}
			id, _ := m["id"].(string)
			return []ContentBlock{ToolUseBlock{ID: id, Name: name, Input: input}}, nil
		}
	}

	var out []ContentBlock
	for _, key := range shorthandKeys {
		raw, ok := m[key]
		if !ok {
			continue
		}
		switch key {
		case "text":
			text, ok := raw.(string)
			if !ok {
				return nil, &TransformError{Field: "text", Message: fmt.Sprintf("expected string, got %T", raw)}
			}
			out = append(out, TextBlock{Text: text})
		case "image":
			out = append(out, ImageBlock{Source: NormalizeSource(raw)})
		case "document":
			out = append(out, DocumentBlock{Source: NormalizeSource(raw)})
		}
	}
	if len(out) == 0 {
		return nil, &TransformError{Field: "content", Message: "map content has no recognized keys"}
	}
	return out, nil
}

func stringKey(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			return s
		}
	}
	return ""
}

func boolKey(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if b, ok := m[k].(bool); ok {
			return b
		}
	}
	return false
}

func firstKey(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

// encodeJSON marshals v to a JSON string, returning "{}" on failure. Used
// where a raw argument payload is required and errors cannot surface.
func encodeJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
