// Package chat answers free-text questions against the aggregated
// customer profiles.
package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"

	"github.com/innovatek/mailprofile/pkg/ai"
	"github.com/innovatek/mailprofile/pkg/profilestore"
)

const systemPrompt = `Du bist ein Kundenservice-Assistent.
Antworte auf Basis aller vorhandenen Kundenprofile.
Wenn die Frage zu einem bestimmten Unternehmen gehört, beantworte sie mit Bezug auf dieses Profil.
Wenn keine Information vorhanden ist, sage: 'Das weiß ich leider nicht'.`

type Service struct {
	logger   *log.Logger
	ai       ai.Completion
	model    string
	profiles *profilestore.Cache
}

func NewService(logger *log.Logger, completion ai.Completion, model string, profiles *profilestore.Cache) (*Service, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if completion == nil {
		return nil, fmt.Errorf("completion is nil")
	}
	return &Service{logger: logger, ai: completion, model: model, profiles: profiles}, nil
}

// Answer sends the question plus every stored profile to the model and
// returns its free-text reply.
func (s *Service) Answer(ctx context.Context, question string) (string, error) {
	profiles, _, err := s.profiles.All()
	if err != nil {
		return "", fmt.Errorf("load profiles: %w", err)
	}
	payload, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return "", err
	}

	userPrompt := fmt.Sprintf("Frage: %s\n\nHier sind alle Kundenprofile:\n%s", question, payload)

	message, err := s.ai.Completions(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userPrompt),
	}, s.model)
	if err != nil {
		return "", err
	}
	return message.Content, nil
}
