package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	personaModel "github.com/zhouzirui/careline/backend/internal/model/persona"
	chatService "github.com/zhouzirui/careline/backend/internal/service/chat"
)

func newTestRouter() http.Handler {
	return NewRouter(Dependencies{
		Personas:       personaModel.NewMemoryStore(personaModel.Seed()),
		Chat:           chatService.NewService(chatService.NewMemoryStore(), 20),
		ContextTurns:   5,
		AllowedOrigins: []string{"*"},
	})
}

func TestRouterServesHealth(t *testing.T) {
	resp := httptest.NewRecorder()
	newTestRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"careline"}`, resp.Body.String())
	assert.NotEmpty(t, resp.Header().Get("Vary"))
}

func TestRouterChatWithoutResponder(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi"}`))
	resp := httptest.NewRecorder()
	newTestRouter().ServeHTTP(resp, req)

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestRouterPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://campus.example")
	resp := httptest.NewRecorder()
	newTestRouter().ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, "https://campus.example", resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterExposesMetrics(t *testing.T) {
	router := newTestRouter()
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "careline_http_request_duration_seconds")
}

func TestRouterWithoutWidgetBridge(t *testing.T) {
	resp := httptest.NewRecorder()
	newTestRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ws", nil))

	assert.Equal(t, http.StatusNotFound, resp.Code)
}
