package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"vero/internal/domain"
)

// tokenEstimator fills in usage metadata when a provider omits it, which
// OpenAI-compatible servers frequently do. Encoding lookup is lazy: it costs
// a dictionary load we never want to pay when the API reports usage itself.
type tokenEstimator struct {
	model string

	once sync.Once
	enc  *tiktoken.Tiktoken
}

func newTokenEstimator(model string) *tokenEstimator {
	return &tokenEstimator{model: model}
}

func (e *tokenEstimator) encoding() *tiktoken.Tiktoken {
	e.once.Do(func() {
		enc, err := tiktoken.EncodingForModel(e.model)
		if err != nil {
			// Unknown model names fall back to the common encoding.
			enc, err = tiktoken.GetEncoding("cl100k_base")
			if err != nil {
				return
			}
		}
		e.enc = enc
	})
	return e.enc
}

// estimate counts prompt tokens across the request messages and completion
// tokens for the response message. Per-message protocol overhead is
// approximated with a flat 4 tokens, following OpenAI's cookbook guidance.
func (e *tokenEstimator) estimate(prompt []domain.Message, completion domain.Message) domain.Usage {
	enc := e.encoding()
	if enc == nil {
		return domain.Usage{}
	}

	const perMessageOverhead = 4

	var promptTokens int
	for _, m := range prompt {
		promptTokens += len(enc.Encode(m.Content, nil, nil)) + perMessageOverhead
	}

	completionTokens := len(enc.Encode(completion.Content, nil, nil))
	for _, tc := range completion.ToolCalls {
		completionTokens += len(enc.Encode(tc.Name+string(tc.Arguments), nil, nil))
	}

	return domain.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}
