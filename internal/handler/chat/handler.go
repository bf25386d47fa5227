package chat

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/careline/backend/internal/analysis/crisis"
	"github.com/zhouzirui/careline/backend/internal/logger"
	"github.com/zhouzirui/careline/backend/internal/metrics"
	"github.com/zhouzirui/careline/backend/internal/model/chat"
	"github.com/zhouzirui/careline/backend/internal/model/persona"
	"github.com/zhouzirui/careline/backend/internal/service/ai"
	chatService "github.com/zhouzirui/careline/backend/internal/service/chat"
	"github.com/zhouzirui/careline/backend/pkg/utils"
)

// SessionCookie 在请求之间传递会话ID
const SessionCookie = "session_id"

const (
	serverErrorReply = "Sorry, I encountered an unexpected error. Please try again."
	maxBodyBytes     = 64 << 10
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc      *chatService.Service
	responder    ai.Responder
	personaStore persona.Store
	detector     *crisis.Detector
	contextTurns int
	log          zerolog.Logger
}

// New 创建聊天处理器。responder 为 nil 时 /chat 返回 503。
func New(chatSvc *chatService.Service, responder ai.Responder, personaStore persona.Store, contextTurns int) *Handler {
	return &Handler{
		chatSvc:      chatSvc,
		responder:    responder,
		personaStore: personaStore,
		detector:     crisis.NewDetector(),
		contextTurns: contextTurns,
		log:          logger.WithComponent("chat"),
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.HandleFunc("/chat", h.handleChat)
	r.Post("/reset", h.handleReset)
	r.Get("/health", h.handleHealth)
}

type chatResponse struct {
	Response  string `json:"response"`
	IsCrisis  bool   `json:"is_crisis"`
	SessionID string `json:"session_id"`
}

type failureResponse struct {
	Error    string `json:"error"`
	Response string `json:"response"`
}

// handleChat 处理一条用户消息
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	message, bodySessionID, ok := decodeChatRequest(r)
	if !ok {
		metrics.ObserveChat(metrics.OutcomeBadRequest)
		utils.RespondError(w, http.StatusBadRequest, "No JSON data received")
		return
	}
	if message == "" {
		metrics.ObserveChat(metrics.OutcomeBadRequest)
		utils.RespondError(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}

	if h.responder == nil {
		metrics.ObserveChat(metrics.OutcomeUnavailable)
		utils.RespondError(w, http.StatusServiceUnavailable, "AI service unavailable")
		return
	}

	ctx := r.Context()
	sessionID := bodySessionID
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		sessionID = cookie.Value
	}

	session, created, err := h.chatSvc.Resume(ctx, sessionID)
	if err != nil {
		h.serverError(w, err, "resume session")
		return
	}

	var history []chat.Turn
	if !created && h.contextTurns > 0 {
		history, err = h.chatSvc.History(ctx, session.ID, h.contextTurns)
		if err != nil {
			h.serverError(w, err, "load history")
			return
		}
	}

	// 模型失败时仍需给出回复并完成危机检测
	outcome := metrics.OutcomeOK
	answer, err := h.responder.Respond(ctx, h.personaStore.Default(), history, message)
	if err != nil {
		h.log.Error().Err(err).Str("session", session.ID).Msg("error getting AI response")
		outcome = metrics.OutcomeAIError
		answer = ai.UnavailableReplyText
	}

	decision := h.detector.Detect(message)
	if decision.Crisis {
		metrics.CrisisDetectionsTotal.Inc()
		h.log.Warn().Str("session", session.ID).Strs("matches", decision.Matches).Msg("crisis indicators detected")
		answer += crisis.Resources
	}

	err = h.chatSvc.Record(ctx, session.ID,
		chat.Turn{Role: chat.RoleUser, Content: message, Crisis: decision.Crisis},
		chat.Turn{Role: chat.RoleModel, Content: answer},
	)
	if err != nil {
		h.serverError(w, err, "record turns")
		return
	}

	http.SetCookie(w, sessionCookie(r, session.ID, 0))
	metrics.ObserveChat(outcome)
	utils.RespondJSON(w, http.StatusOK, chatResponse{
		Response:  answer,
		IsCrisis:  decision.Crisis,
		SessionID: session.ID,
	})
}

// handleReset 清除当前会话
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		if err := h.chatSvc.Reset(r.Context(), cookie.Value); err != nil {
			h.log.Error().Err(err).Str("session", cookie.Value).Msg("reset session")
			utils.RespondJSON(w, http.StatusInternalServerError, failureResponse{Error: "Server error", Response: serverErrorReply})
			return
		}
	}

	metrics.ResetsTotal.Inc()
	http.SetCookie(w, sessionCookie(r, "", -1))
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// handleHealth 健康检查
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "careline"})
}

func (h *Handler) serverError(w http.ResponseWriter, err error, op string) {
	h.log.Error().Err(err).Str("op", op).Msg("request processing error")
	metrics.ObserveChat(metrics.OutcomeServerError)
	utils.RespondJSON(w, http.StatusInternalServerError, failureResponse{Error: "Server error", Response: serverErrorReply})
}

// decodeChatRequest 读取 {"message","session_id"}。请求体缺失、不是JSON对象、
// 为空对象或字段不是字符串时 ok 为 false。
func decodeChatRequest(r *http.Request) (message, sessionID string, ok bool) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&fields); err != nil || len(fields) == 0 {
		return "", "", false
	}

	if raw, found := fields["message"]; found {
		if err := json.Unmarshal(raw, &message); err != nil {
			return "", "", false
		}
	}
	if raw, found := fields["session_id"]; found {
		if err := json.Unmarshal(raw, &sessionID); err != nil {
			return "", "", false
		}
	}
	return strings.TrimSpace(message), strings.TrimSpace(sessionID), true
}

func sessionCookie(r *http.Request, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
}
