package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/zhouzirui/careline/backend/internal/config"
	"github.com/zhouzirui/careline/backend/internal/model/chat"
	"github.com/zhouzirui/careline/backend/internal/model/persona"
)

type fakeChatModel struct {
	reply string
	err   error
	input []*schema.Message
}

func (m *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.input = input
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *fakeChatModel) BindTools([]*schema.ToolInfo) error { return nil }

type fakeGenerator struct {
	result   *genai.GenerateContentResponse
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (g *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	g.model, g.contents, g.config = model, contents, cfg
	return g.result, g.err
}

func textResponse(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: genai.RoleModel, Parts: parts}}},
	}
}

func sampleHistory() []chat.Turn {
	return []chat.Turn{
		{Role: chat.RoleUser, Content: "exams are coming"},
		{Role: chat.RoleModel, Content: "that sounds stressful"},
		{Role: "system", Content: "ignored"},
	}
}

func TestBuildSystemPromptIncludesPersona(t *testing.T) {
	p := persona.Seed()[0]
	got := BuildSystemPrompt(p)

	assert.Contains(t, got, "You are Careline")
	assert.Contains(t, got, "CORE APPROACH:\n- "+p.StyleRules[0])
	assert.Contains(t, got, "STUDENT-FOCUSED SUPPORT AREAS:\n1. "+p.FocusAreas[0])
	assert.Contains(t, got, "SAFETY PRIORITY: "+p.SafetyRule)
}

func TestBuildSystemPromptSkipsEmptySections(t *testing.T) {
	got := BuildSystemPrompt(persona.Persona{Name: "Sam", Title: "listener"})

	assert.NotContains(t, got, "CORE APPROACH")
	assert.NotContains(t, got, "SAFETY PRIORITY")
	assert.True(t, strings.HasPrefix(got, "You are Sam, a compassionate listener"))
}

func TestArkResponderRunsChain(t *testing.T) {
	fake := &fakeChatModel{reply: "I'm glad you reached out."}
	r, err := NewArkResponder(context.Background(), fake)
	require.NoError(t, err)

	answer, err := r.Respond(context.Background(), persona.Seed()[0], sampleHistory(), "I can't sleep")
	require.NoError(t, err)
	assert.Equal(t, "I'm glad you reached out.", answer)

	require.Len(t, fake.input, 4)
	assert.Equal(t, schema.System, fake.input[0].Role)
	assert.Equal(t, schema.User, fake.input[1].Role)
	assert.Equal(t, schema.Assistant, fake.input[2].Role)
	assert.Equal(t, "I can't sleep", fake.input[3].Content)
}

func TestArkResponderEmptyAnswer(t *testing.T) {
	r, err := NewArkResponder(context.Background(), &fakeChatModel{reply: "  "})
	require.NoError(t, err)

	answer, err := r.Respond(context.Background(), persona.Seed()[0], nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, EmptyReplyText, answer)
}

func TestArkResponderError(t *testing.T) {
	r, err := NewArkResponder(context.Background(), &fakeChatModel{err: errors.New("quota")})
	require.NoError(t, err)

	_, err = r.Respond(context.Background(), persona.Seed()[0], nil, "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
}

func TestGeminiResponderBuildsRequest(t *testing.T) {
	gen := &fakeGenerator{result: textResponse(
		&genai.Part{Text: "thinking...", Thought: true},
		&genai.Part{Text: "Let's take "},
		&genai.Part{Text: "a breath together."},
	)}
	cfg := config.GeminiConfig{APIKey: "k", Model: "gemini-2.5-flash", Temperature: 0.8, MaxTokens: 600}
	r := newGeminiResponder(gen, cfg)

	answer, err := r.Respond(context.Background(), persona.Seed()[0], sampleHistory(), "I can't sleep")
	require.NoError(t, err)
	assert.Equal(t, "Let's take a breath together.", answer)

	assert.Equal(t, "gemini-2.5-flash", gen.model)
	require.Len(t, gen.contents, 3)
	assert.Equal(t, genai.RoleUser, gen.contents[0].Role)
	assert.Equal(t, genai.RoleModel, gen.contents[1].Role)
	assert.Equal(t, "I can't sleep", gen.contents[2].Parts[0].Text)

	require.NotNil(t, gen.config.Temperature)
	assert.InDelta(t, 0.8, *gen.config.Temperature, 1e-6)
	assert.Equal(t, int32(600), gen.config.MaxOutputTokens)
	require.NotNil(t, gen.config.SystemInstruction)
	assert.Contains(t, gen.config.SystemInstruction.Parts[0].Text, "You are Careline")
}

func TestGeminiResponderEmptyAnswer(t *testing.T) {
	for name, result := range map[string]*genai.GenerateContentResponse{
		"nil":          nil,
		"no candidate": {},
		"thought only": textResponse(&genai.Part{Text: "hmm", Thought: true}),
	} {
		t.Run(name, func(t *testing.T) {
			r := newGeminiResponder(&fakeGenerator{result: result}, config.GeminiConfig{Model: "m"})

			answer, err := r.Respond(context.Background(), persona.Seed()[0], nil, "hi")
			require.NoError(t, err)
			assert.Equal(t, EmptyReplyText, answer)
		})
	}
}

func TestGeminiResponderError(t *testing.T) {
	r := newGeminiResponder(&fakeGenerator{err: errors.New("unavailable")}, config.GeminiConfig{Model: "m"})

	_, err := r.Respond(context.Background(), persona.Seed()[0], nil, "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
}

func TestNewWithoutProvider(t *testing.T) {
	_, err := New(context.Background(), config.AIConfig{})
	assert.ErrorIs(t, err, ErrNoProvider)

	_, err = New(context.Background(), config.AIConfig{Provider: config.ProviderGemini})
	assert.Error(t, err)

	_, err = New(context.Background(), config.AIConfig{Provider: config.ProviderArk})
	assert.Error(t, err)
}
