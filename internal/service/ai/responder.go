package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zhouzirui/careline/backend/internal/config"
	"github.com/zhouzirui/careline/backend/internal/model/chat"
	"github.com/zhouzirui/careline/backend/internal/model/persona"
)

// EmptyReplyText stands in for a model answer that came back blank.
const EmptyReplyText = "I'm sorry, I'm having trouble responding right now. Please try again or reach out to campus support services if you need immediate help."

// UnavailableReplyText is served in place of an answer when the model call fails.
const UnavailableReplyText = "I'm experiencing some technical difficulties. Please try again or contact campus counseling services if you need immediate support."

// ErrNoProvider is returned by New when no model backend is configured.
var ErrNoProvider = errors.New("no AI provider configured")

// Responder produces the companion's next reply.
type Responder interface {
	Respond(ctx context.Context, p persona.Persona, history []chat.Turn, message string) (string, error)
}

// New builds the responder selected by cfg.Provider.
func New(ctx context.Context, cfg config.AIConfig) (Responder, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		r, err := NewGeminiResponder(ctx, cfg.Gemini)
		if err != nil {
			return nil, err
		}
		return r, nil
	case config.ProviderArk:
		chatModel, err := cfg.Ark.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		r, err := NewArkResponder(ctx, chatModel)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, ErrNoProvider
	}
}

func orApology(answer string) string {
	if strings.TrimSpace(answer) == "" {
		return EmptyReplyText
	}
	return answer
}
