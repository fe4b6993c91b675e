package ai

import (
	"context"

	"github.com/openai/openai-go"
)

// Completion is the boundary to the language model. The ingestion core
// never talks to a model directly; tests substitute a fake.
type Completion interface {
	Completions(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, model string) (openai.ChatCompletionMessage, error)
}
