// Package profiler turns a company's persisted email history into a
// customer profile through the language-model boundary. One attempt per
// company per invocation; a failed company never blocks the next one.
package profiler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"

	"github.com/innovatek/mailprofile/pkg/ai"
	"github.com/innovatek/mailprofile/pkg/emailstore"
	"github.com/innovatek/mailprofile/pkg/profilestore"
)

const promptTemplate = `Du bekommst eine Liste von Emails im JSON-Format.
Erstelle für jede Kundenfirma nur ein Profil.

Jedes Profil enthält:
- company_name: der Name des Unternehmens
- contacts: alle eindeutigen Kontakte (name + email)
- products: eine Liste der angefragten oder bestellten Produkte
- summary: Zusammenfassung des Email-Verlaufs (max. 8 Sätze)

Regeln:
- Unsere eigenen Kontakte sollen nicht aufgenommen werden.
- Das heißt, eine Kunden-Emailadresse kann nicht auf einer dieser Domains enden: %s.
- Gib das Ergebnis ausschließlich als gültiges JSON-Array zurück, ohne Markdown.

Hier sind die Emails:
%s`

type Report struct {
	Synthesized []string
	Fallbacks   []string
}

type Synthesizer struct {
	logger      *log.Logger
	ai          ai.Completion
	model       string
	emails      *emailstore.Store
	profiles    *profilestore.Store
	homeDomains []string
}

func NewSynthesizer(logger *log.Logger, completion ai.Completion, model string, emails *emailstore.Store, profiles *profilestore.Store, homeDomains []string) (*Synthesizer, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if completion == nil {
		return nil, fmt.Errorf("completion is nil")
	}
	return &Synthesizer{
		logger:      logger,
		ai:          completion,
		model:       model,
		emails:      emails,
		profiles:    profiles,
		homeDomains: homeDomains,
	}, nil
}

// RefreshAll discards every stored profile and synthesizes a fresh one per
// email-store key.
func (s *Synthesizer) RefreshAll(ctx context.Context) (Report, error) {
	report := Report{}

	removed, err := s.profiles.DeleteAll()
	if err != nil {
		return report, fmt.Errorf("delete old profiles: %w", err)
	}
	if removed > 0 {
		s.logger.Info("Deleted existing profiles", "count", removed)
	}

	keys, err := s.emails.Keys()
	if err != nil {
		return report, err
	}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		emails, err := s.emails.Load(key)
		if err != nil {
			s.logger.Warn("Skipping unreadable email document", "key", key, "error", err)
			continue
		}
		ok, err := s.SynthesizeCompany(ctx, key, emails)
		if err != nil {
			s.logger.Warn("Profile synthesis failed", "key", key, "error", err)
			continue
		}
		if ok {
			report.Synthesized = append(report.Synthesized, key)
		} else {
			report.Fallbacks = append(report.Fallbacks, key)
		}
	}
	return report, nil
}

// SynthesizeCompany runs one model call for one company and persists the
// result. It returns false when the model output was not parsable JSON and
// a raw-output fallback was stored instead.
func (s *Synthesizer) SynthesizeCompany(ctx context.Context, key string, emails []emailstore.Email) (bool, error) {
	payload, err := json.MarshalIndent(emails, "", "  ")
	if err != nil {
		return false, err
	}
	prompt := fmt.Sprintf(promptTemplate, strings.Join(s.homeDomains, ", "), payload)

	message, err := s.ai.Completions(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(prompt),
	}, s.model)
	if err != nil {
		return false, err
	}
	output := strings.TrimSpace(message.Content)

	profiles, err := ParseProfiles(output)
	if err != nil {
		s.logger.Warn("Model output is not valid JSON, storing raw output", "key", key, "error", err)
		fallback := []profilestore.Profile{{RawOutput: output}}
		if werr := s.profiles.Write(key, fallback); werr != nil {
			return false, werr
		}
		return false, nil
	}

	if err := s.profiles.Write(key, profiles); err != nil {
		return false, err
	}
	s.logger.Info("Profile stored", "key", key, "profiles", len(profiles))
	return true, nil
}

// ParseProfiles parses model output into profiles, tolerating markdown
// code fences and a bare object instead of an array.
func ParseProfiles(output string) ([]profilestore.Profile, error) {
	cleaned := strings.TrimSpace(StripCodeFences(output))

	var profiles []profilestore.Profile
	if err := json.Unmarshal([]byte(cleaned), &profiles); err == nil {
		return profiles, nil
	}
	var single profilestore.Profile
	if err := json.Unmarshal([]byte(cleaned), &single); err != nil {
		return nil, err
	}
	return []profilestore.Profile{single}, nil
}

// StripCodeFences removes ```json and ``` wrappers the model sometimes
// adds despite being told not to.
func StripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	return strings.ReplaceAll(s, "```", "")
}
