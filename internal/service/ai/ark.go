package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/careline/backend/internal/logger"
	"github.com/zhouzirui/careline/backend/internal/model/chat"
	"github.com/zhouzirui/careline/backend/internal/model/persona"
)

// ArkResponder runs a prompt template and an eino chat model as one compiled chain.
type ArkResponder struct {
	chain compose.Runnable[map[string]any, *schema.Message]
	log   zerolog.Logger
}

// NewArkResponder compiles the chat chain around chatModel.
func NewArkResponder(ctx context.Context, chatModel model.ChatModel) (*ArkResponder, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ArkResponder{chain: runnable, log: logger.WithComponent("ai.ark")}, nil
}

func (r *ArkResponder) Respond(ctx context.Context, p persona.Persona, history []chat.Turn, message string) (string, error) {
	input := map[string]any{
		"system":  BuildSystemPrompt(p),
		"history": historyMessages(history),
		"query":   message,
	}

	response, err := r.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	r.log.Debug().Str("persona", p.ID).Int("length", len(response.Content)).Msg("generated response")
	return orApology(response.Content), nil
}

func historyMessages(turns []chat.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case chat.RoleModel:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return history
}
