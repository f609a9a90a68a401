package arena

import (
	"strings"

	"github.com/tidwall/sjson"
)

const responseTemplate = `{"id":"","object":"chat.completion","created":0,"model":"","choices":[{"index":0,"message":{"role":"assistant","content":""},"finish_reason":"stop"}],"usage":{"prompt_tokens":0,"completion_tokens":0,"total_tokens":0}}`

// Aggregate accumulates one buffered exchange with the same per-line
// classification the streaming path uses. Content fragments are joined
// without separators, so split words reassemble exactly; each image
// reference is its own fragment.
type Aggregate struct {
	content      []string
	reasoning    []string
	finishReason string
	usageRaw     string
	done         bool
}

// NewAggregate starts an empty aggregation.
func NewAggregate() *Aggregate {
	return &Aggregate{finishReason: "stop"}
}

// AddLine folds one upstream line into the aggregate. Lines after a
// terminal event are ignored.
func (a *Aggregate) AddLine(line []byte) {
	if a == nil || a.done {
		return
	}
	ev, ok := classifyLine(line)
	if !ok {
		return
	}
	if ev.hasContent {
		a.content = append(a.content, ev.content)
	}
	for _, url := range ev.imageURLs {
		a.content = append(a.content, "![image]("+url+")")
	}
	if ev.hasReasoning {
		a.reasoning = append(a.reasoning, ev.reasoning)
	}
	if ev.terminal {
		a.finishReason = ev.finishReason
		if ev.usageRaw != "" {
			a.usageRaw = ev.usageRaw
		}
		a.done = true
	}
}

// Done reports whether a terminal event has been seen; the caller can stop
// reading upstream lines once it has.
func (a *Aggregate) Done() bool {
	return a != nil && a.done
}

// Content returns the joined content accumulated so far.
func (a *Aggregate) Content() string {
	if a == nil {
		return ""
	}
	return strings.Join(a.content, "")
}

// Reasoning returns the joined reasoning text accumulated so far.
func (a *Aggregate) Reasoning() string {
	if a == nil {
		return ""
	}
	return strings.Join(a.reasoning, "")
}

// HasUsage reports whether the upstream supplied usage in its terminal
// event.
func (a *Aggregate) HasUsage() bool {
	return a != nil && a.usageRaw != ""
}

// Response renders the aggregated chat completion. When the upstream
// terminal event carried usage it is passed through untouched; otherwise
// fallback fills the usage block.
func (a *Aggregate) Response(evalID, model string, created int64, fallback Usage) string {
	resp := responseTemplate
	resp, _ = sjson.Set(resp, "id", "chatcmpl-"+evalID)
	resp, _ = sjson.Set(resp, "created", created)
	resp, _ = sjson.Set(resp, "model", model)
	resp, _ = sjson.Set(resp, "choices.0.message.content", a.Content())
	if reasoning := a.Reasoning(); reasoning != "" {
		resp, _ = sjson.Set(resp, "choices.0.message.reasoning_content", reasoning)
	}
	resp, _ = sjson.Set(resp, "choices.0.finish_reason", a.finishReason)
	if a.usageRaw != "" {
		resp, _ = sjson.SetRaw(resp, "usage", a.usageRaw)
	} else if fallback != (Usage{}) {
		resp, _ = sjson.Set(resp, "usage.prompt_tokens", fallback.PromptTokens)
		resp, _ = sjson.Set(resp, "usage.completion_tokens", fallback.CompletionTokens)
		resp, _ = sjson.Set(resp, "usage.total_tokens", fallback.TotalTokens)
	}
	return resp
}
