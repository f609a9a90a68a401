package arena

import (
	"bytes"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const chunkTemplate = `{"id":"","object":"chat.completion.chunk","created":0,"model":"","choices":[{"index":0,"delta":{},"finish_reason":null}]}`

// arenaErrorSentinel is the literal a0 value the upstream emits instead of
// text when the evaluation failed server-side.
const arenaErrorSentinel = "hasArenaError"

// StreamState tracks one streamed exchange: the chat id derived from the
// evaluation id, and whether a terminal event has already been emitted.
// Lines after termination convert to nothing.
type StreamState struct {
	ChatID  string
	Created int64
	Model   string

	base string
	done bool
}

// NewStreamState starts a conversion for one evaluation.
func NewStreamState(evalID, model string, created int64) *StreamState {
	return &StreamState{
		ChatID:  "chatcmpl-" + evalID,
		Created: created,
		Model:   model,
	}
}

// Done reports whether a terminal chunk has been emitted.
func (st *StreamState) Done() bool {
	return st != nil && st.done
}

// ConvertLine classifies one upstream line and returns the OpenAI chunk
// payloads it produces, in emission order. Unrecognized tags, heartbeats,
// and malformed lines yield nothing; a malformed line never aborts the
// lines after it.
func (st *StreamState) ConvertLine(line []byte) []string {
	if st == nil || st.done {
		return nil
	}
	ev, ok := classifyLine(line)
	if !ok {
		return nil
	}

	var out []string
	if ev.hasContent {
		out = append(out, st.contentChunk(ev.content))
	}
	if len(ev.imageURLs) > 0 {
		out = append(out, st.contentChunk(renderImageMarkdown(ev.imageURLs, "\n")))
	}
	if ev.hasReasoning {
		out = append(out, st.reasoningChunk(ev.reasoning))
	}
	if ev.terminal {
		out = append(out, st.finishChunk(ev.finishReason))
		st.done = true
	}
	return out
}

// ErrorChunk renders a single terminal chunk carrying message as content,
// used for upstream failures before or during the stream. The state is
// marked done.
func (st *StreamState) ErrorChunk(message string) string {
	chunk := st.chunkBase()
	chunk, _ = sjson.Set(chunk, "choices.0.delta.content", message)
	chunk, _ = sjson.Set(chunk, "choices.0.finish_reason", "stop")
	st.done = true
	return chunk
}

func (st *StreamState) chunkBase() string {
	if st.base == "" {
		base := chunkTemplate
		base, _ = sjson.Set(base, "id", st.ChatID)
		base, _ = sjson.Set(base, "created", st.Created)
		base, _ = sjson.Set(base, "model", st.Model)
		st.base = base
	}
	return st.base
}

func (st *StreamState) contentChunk(content string) string {
	chunk, _ := sjson.Set(st.chunkBase(), "choices.0.delta.content", content)
	return chunk
}

func (st *StreamState) reasoningChunk(reasoning string) string {
	chunk, _ := sjson.Set(st.chunkBase(), "choices.0.delta.reasoning_content", reasoning)
	return chunk
}

func (st *StreamState) finishChunk(reason string) string {
	chunk, _ := sjson.Set(st.chunkBase(), "choices.0.finish_reason", reason)
	return chunk
}

// lineEvent is the outcome of classifying one upstream line.
type lineEvent struct {
	content      string
	hasContent   bool
	reasoning    string
	hasReasoning bool
	imageURLs    []string
	terminal     bool
	finishReason string
	usageRaw     string
}

// classifyLine dispatches one line by its tag prefix. ok is false for
// blank lines, unknown tags, heartbeats, and lines whose payload fails to
// parse where JSON is required.
func classifyLine(line []byte) (lineEvent, bool) {
	var ev lineEvent
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) < 3 {
		return ev, false
	}
	tag, payload := trimmed[:3], trimmed[3:]

	switch string(tag) {
	case "a0:":
		if !gjson.ValidBytes(payload) {
			return ev, false
		}
		res := gjson.ParseBytes(payload)
		if res.Type == gjson.Null {
			return ev, false
		}
		if res.Type == gjson.String && res.String() == arenaErrorSentinel {
			ev.content, ev.hasContent = "[Arena Error]", true
			ev.terminal, ev.finishReason = true, "stop"
			return ev, true
		}
		ev.content, ev.hasContent = res.String(), true
		return ev, true

	case "ag:":
		if !gjson.ValidBytes(payload) {
			return ev, false
		}
		res := gjson.ParseBytes(payload)
		if res.Type == gjson.Null {
			return ev, false
		}
		ev.reasoning, ev.hasReasoning = res.String(), true
		return ev, true

	case "ad:":
		ev.terminal, ev.finishReason = true, "stop"
		if gjson.ValidBytes(payload) {
			parsed := gjson.ParseBytes(payload)
			if reason := parsed.Get("finishReason").String(); reason != "" {
				ev.finishReason = reason
			}
			if usage := parsed.Get("usage"); usage.Exists() {
				ev.usageRaw = usage.Raw
			}
		}
		return ev, true

	case "a2:":
		if bytes.Contains(trimmed, []byte("heartbeat")) {
			return ev, false
		}
		if !gjson.ValidBytes(payload) {
			return ev, false
		}
		res := gjson.ParseBytes(payload)
		if !res.IsArray() {
			return ev, false
		}
		for _, item := range res.Array() {
			if img := item.Get("image").String(); img != "" {
				ev.imageURLs = append(ev.imageURLs, img)
			}
		}
		if len(ev.imageURLs) == 0 {
			return ev, false
		}
		return ev, true

	case "a3:":
		ev.content, ev.hasContent = "[Error: "+renderErrorPayload(payload)+"]", true
		ev.terminal, ev.finishReason = true, "stop"
		return ev, true

	default:
		return ev, false
	}
}

func renderErrorPayload(payload []byte) string {
	if gjson.ValidBytes(payload) {
		res := gjson.ParseBytes(payload)
		if res.Type == gjson.String {
			return res.String()
		}
		return res.Raw
	}
	return string(bytes.TrimSpace(payload))
}

func renderImageMarkdown(urls []string, sep string) string {
	parts := make([]string, 0, len(urls))
	for _, url := range urls {
		parts = append(parts, "![image]("+url+")")
	}
	return strings.Join(parts, sep)
}
