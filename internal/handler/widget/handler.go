package widget

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/careline/backend/internal/logger"
	"github.com/zhouzirui/careline/backend/internal/metrics"
	widgetcore "github.com/zhouzirui/careline/backend/internal/widget"
)

const (
	pongWait             = 60 * time.Second
	pingPeriod           = 30 * time.Second
	DefaultConfirmWait   = 60 * time.Second
	maxInboundFrameBytes = 16 << 10
)

// EndpointFactory 为每个连接创建独立的对话端点，每个浏览器标签页各自保有服务端会话
type EndpointFactory func() (widgetcore.Endpoint, error)

// Handler 通过websocket把浏览器挂件接到挂件会话上
type Handler struct {
	newEndpoint EndpointFactory
	options     []widgetcore.Option
	confirmWait time.Duration
	upgrader    websocket.Upgrader
	log         zerolog.Logger
}

// New 创建 websocket 桥接处理器。allowedOrigins 为空或包含 "*" 时接受任意来源。
func New(newEndpoint EndpointFactory, allowedOrigins []string, opts ...widgetcore.Option) *Handler {
	return &Handler{
		newEndpoint: newEndpoint,
		options:     opts,
		confirmWait: DefaultConfirmWait,
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: logger.WithComponent("widget.ws"),
	}
}

// RegisterRoutes 注册 websocket 路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
	OK   bool   `json:"ok"`
}

// handleWebSocket 处理 websocket 连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	endpoint, err := h.newEndpoint()
	if err != nil {
		h.log.Error().Err(err).Msg("create endpoint")
		http.Error(w, "chat endpoint unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("upgrade failed")
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	log := h.log.With().Str("conn", connID).Logger()
	log.Info().Msg("widget connected")
	metrics.WidgetConnections.Inc()
	defer metrics.WidgetConnections.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	view := newConnView(conn, ctx.Done(), h.confirmWait, log)
	opts := append(append([]widgetcore.Option(nil), h.options...), widgetcore.WithLogger(log))
	session := widgetcore.New(endpoint, view, opts...)
	defer session.Close()
	view.ready()

	conn.SetReadLimit(maxInboundFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go pingLoop(ctx, conn)

	for {
		var msg inboundFrame
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("read error")
			}
			log.Info().Msg("widget disconnected")
			// 在 Close 等待之前先唤醒挂起的 Confirm
			cancel()
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		h.dispatch(view, msg, log)
	}
}

func (h *Handler) dispatch(view *connView, msg inboundFrame, log zerolog.Logger) {
	hooks := view.hooks()
	switch msg.Type {
	case "input":
		hooks.OnInputChange(msg.Text)
	case "submit":
		if msg.Text != "" {
			hooks.OnInputChange(msg.Text)
		}
		hooks.OnSubmit()
	case "reset":
		hooks.OnReset()
	case "confirm":
		view.answer(msg.OK)
	default:
		log.Debug().Str("type", msg.Type).Msg("ignoring unknown frame")
	}
}

func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func originChecker(allowedOrigins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.TrimSpace(origin)] = true
	}
	if len(allowed) == 0 || allowed["*"] {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}
