package ai

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/zhouzirui/careline/backend/internal/config"
	"github.com/zhouzirui/careline/backend/internal/logger"
	"github.com/zhouzirui/careline/backend/internal/model/chat"
	"github.com/zhouzirui/careline/backend/internal/model/persona"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiResponder talks to the Gemini Developer API.
type GeminiResponder struct {
	models contentGenerator
	cfg    config.GeminiConfig
	log    zerolog.Logger
}

// NewGeminiResponder creates a genai client from cfg.
func NewGeminiResponder(ctx context.Context, cfg config.GeminiConfig) (*GeminiResponder, error) {
	if !cfg.Enabled() {
		return nil, errors.New("gemini API key not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}
	return newGeminiResponder(client.Models, cfg), nil
}

func newGeminiResponder(models contentGenerator, cfg config.GeminiConfig) *GeminiResponder {
	return &GeminiResponder{models: models, cfg: cfg, log: logger.WithComponent("ai.gemini")}
}

func (r *GeminiResponder) Respond(ctx context.Context, p persona.Persona, history []chat.Turn, message string) (string, error) {
	contents := geminiContents(history, message)

	result, err := r.models.GenerateContent(ctx, r.cfg.Model, contents, r.generationConfig(p))
	if err != nil {
		return "", errors.Wrap(err, "gemini request failed")
	}

	answer := responseText(result)
	r.log.Debug().Str("model", r.cfg.Model).Int("contents", len(contents)).Int("length", len(answer)).Msg("gemini response received")
	return orApology(answer), nil
}

func (r *GeminiResponder) generationConfig(p persona.Persona) *genai.GenerateContentConfig {
	temperature := r.cfg.Temperature
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(BuildSystemPrompt(p), genai.RoleUser),
		Temperature:       &temperature,
		MaxOutputTokens:   r.cfg.MaxTokens,
	}
}

func geminiContents(history []chat.Turn, message string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		var role string
		switch turn.Role {
		case chat.RoleUser:
			role = genai.RoleUser
		case chat.RoleModel:
			role = genai.RoleModel
		default:
			continue
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: turn.Content}},
		})
	}
	return append(contents, &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: message}},
	})
}

// responseText joins the text parts of every candidate, skipping thought summaries.
func responseText(result *genai.GenerateContentResponse) string {
	if result == nil {
		return ""
	}

	var b strings.Builder
	for _, candidate := range result.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Text == "" || part.Thought {
				continue
			}
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
