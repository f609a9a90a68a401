package handlers

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// detectClientFlavor classifies the inbound client from its User-Agent.
// Claude-flavored clients get extra Anthropic fields on the responses;
// everything else receives plain OpenAI shapes.
func detectClientFlavor(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "claude"), strings.Contains(ua, "anthropic"):
		return "claude"
	case strings.Contains(ua, "gemini"), strings.Contains(ua, "google"):
		return "gemini"
	case strings.Contains(ua, "codex"):
		return "codex"
	case strings.Contains(ua, "opencode"):
		return "opencode"
	default:
		return "openai"
	}
}

// decorateChunk marks content deltas as content_block_delta for
// Claude-flavored clients. Reasoning and terminal chunks pass through.
func decorateChunk(chunk, flavor string) string {
	if flavor != "claude" {
		return chunk
	}
	if !gjson.Get(chunk, "choices.0.delta.content").Exists() {
		return chunk
	}
	out, _ := sjson.Set(chunk, "type", "content_block_delta")
	return out
}

// decorateResponse adds the Anthropic message envelope on buffered
// responses for Claude-flavored clients.
func decorateResponse(resp, flavor, content string) string {
	if flavor != "claude" {
		return resp
	}
	out, _ := sjson.Set(resp, "type", "message")
	out, _ = sjson.Set(out, "role", "assistant")
	out, _ = sjson.SetRaw(out, "content", `[{"type":"text","text":""}]`)
	out, _ = sjson.Set(out, "content.0.text", content)
	return out
}
