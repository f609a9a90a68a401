package arena

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Usage mirrors the OpenAI usage block.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

func usageCodec() tokenizer.Codec {
	codecOnce.Do(func() {
		c, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			return
		}
		codec = c
	})
	return codec
}

// EstimateUsage approximates token usage with a cl100k count when the
// upstream reports none. Returns zeros when the tokenizer is unavailable.
func EstimateUsage(prompt, completion string) Usage {
	enc := usageCodec()
	if enc == nil {
		return Usage{}
	}
	promptIDs, _, err := enc.Encode(prompt)
	if err != nil {
		return Usage{}
	}
	completionIDs, _, err := enc.Encode(completion)
	if err != nil {
		return Usage{}
	}
	promptTokens := len(promptIDs)
	completionTokens := len(completionIDs)
	return Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}
