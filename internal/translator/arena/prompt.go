package arena

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrEmptyPrompt indicates message extraction yielded no text to send
// upstream.
var ErrEmptyPrompt = errors.New("prompt extraction yielded no text")

var knownRoles = map[string]struct{}{
	"system":    {},
	"developer": {},
	"user":      {},
	"assistant": {},
	"tool":      {},
}

func normalizeRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if _, ok := knownRoles[role]; ok {
		return role
	}
	return "user"
}

// BuildConversationPrompt flattens the request's messages into the single
// prompt string the upstream expects. A lone user message passes through
// verbatim with no role framing; any other shape renders each message with
// text as "<|role|>\n{text}", separated by blank lines, in original order.
func BuildConversationPrompt(rawBody []byte) (string, error) {
	messages := gjson.GetBytes(rawBody, "messages").Array()
	if len(messages) == 0 {
		return "", ErrEmptyPrompt
	}

	if len(messages) == 1 && normalizeRole(messages[0].Get("role").String()) == "user" {
		prompt := extractText(messages[0].Get("content"))
		if prompt == "" {
			return "", ErrEmptyPrompt
		}
		return prompt, nil
	}

	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		text := extractText(msg.Get("content"))
		if text == "" {
			continue
		}
		parts = append(parts, "<|"+normalizeRole(msg.Get("role").String())+"|>\n"+text)
	}
	if len(parts) == 0 {
		return "", ErrEmptyPrompt
	}
	return strings.Join(parts, "\n\n"), nil
}

// extractText pulls the text out of a structured content value. Strings are
// trimmed, objects yield their text field or their raw JSON, and list items
// are extracted individually and joined with newlines. Image items render
// as "[image] {url}"; items with an unrecognized non-empty type keep their
// raw JSON instead of being dropped.
func extractText(content gjson.Result) string {
	switch {
	case content.Type == gjson.String:
		return strings.TrimSpace(content.String())
	case content.IsArray():
		parts := make([]string, 0, 4)
		for _, item := range content.Array() {
			if text := extractItemText(item); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")
	case content.IsObject():
		if text := content.Get("text"); text.Exists() {
			return text.String()
		}
		return content.Raw
	default:
		return ""
	}
}

func extractItemText(item gjson.Result) string {
	switch item.Get("type").String() {
	case "text":
		return item.Get("text").String()
	case "image_url":
		url := item.Get("image_url.url").String()
		if url == "" {
			url = item.Get("url").String()
		}
		return "[image] " + url
	case "image":
		url := item.Get("url").String()
		if url == "" {
			url = item.Get("image_url.url").String()
		}
		return "[image] " + url
	case "":
		return ""
	default:
		return item.Raw
	}
}
