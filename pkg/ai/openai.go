package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const requestTimeout = 120 * time.Second

var _ Completion = (*Service)(nil)

// Service wraps the OpenAI-compatible completions endpoint. Each call gets
// its own timeout and exactly one retry; callers needing more resilience
// layer it on top.
type Service struct {
	client *openai.Client
	logger *log.Logger
}

func NewOpenAIService(logger *log.Logger, apiKey string, baseUrl string) *Service {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseUrl),
	)
	return &Service{
		client: &client,
		logger: logger,
	}
}

func (s *Service) Completions(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, model string) (openai.ChatCompletionMessage, error) {
	msg, err := s.complete(ctx, messages, model)
	if err == nil {
		return msg, nil
	}
	if ctx.Err() != nil {
		return openai.ChatCompletionMessage{}, err
	}
	s.logger.Warn("Completion failed, retrying once", "model", model, "error", err)
	return s.complete(ctx, messages, model)
}

func (s *Service) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, model string) (openai.ChatCompletionMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	completion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    model,
	})
	if err != nil {
		return openai.ChatCompletionMessage{}, err
	}
	if len(completion.Choices) == 0 {
		return openai.ChatCompletionMessage{}, fmt.Errorf("model returned no completion choices")
	}
	return completion.Choices[0].Message, nil
}
