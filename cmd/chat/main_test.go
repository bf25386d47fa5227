package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chathandler "github.com/zhouzirui/careline/backend/internal/handler/chat"
	"github.com/zhouzirui/careline/backend/internal/model/chat"
	"github.com/zhouzirui/careline/backend/internal/model/persona"
	chatservice "github.com/zhouzirui/careline/backend/internal/service/chat"
)

type cannedResponder struct{}

func (cannedResponder) Respond(_ context.Context, _ persona.Persona, history []chat.Turn, message string) (string, error) {
	if len(history) > 0 {
		return "Welcome back. You said: " + message, nil
	}
	return "Thanks for sharing: " + message, nil
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	chathandler.New(
		chatservice.NewService(chatservice.NewMemoryStore(), 20),
		cannedResponder{},
		persona.NewMemoryStore(persona.Seed()),
		5,
	).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestChatCommandConversation(t *testing.T) {
	srv := newServer(t)

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--endpoint", srv.URL, "--plain", "--greeting", "Hey!"})
	cmd.SetIn(strings.NewReader("exams again\nstill stressed\n/quit\n"))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	require.NoError(t, cmd.ExecuteContext(context.Background()))

	got := out.String()
	assert.Contains(t, got, "Careline: Hey!")
	assert.Contains(t, got, "Careline: Thanks for sharing: exams again")
	assert.Contains(t, got, "Careline: Welcome back. You said: still stressed")
}

func TestChatCommandUnreachableEndpoint(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--endpoint", "http://127.0.0.1:1", "--plain", "--timeout", "2s"})
	cmd.SetIn(strings.NewReader("hello\n"))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "trouble connecting")
}

func TestChatCommandRejectsBadEndpoint(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--endpoint", "ftp://example.com"})
	cmd.SetIn(strings.NewReader(""))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	assert.Error(t, cmd.ExecuteContext(context.Background()))
}
