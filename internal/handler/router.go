package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zhouzirui/careline/backend/internal/handler/chat"
	"github.com/zhouzirui/careline/backend/internal/handler/persona"
	"github.com/zhouzirui/careline/backend/internal/handler/widget"
	"github.com/zhouzirui/careline/backend/internal/logger"
	middlewarePkg "github.com/zhouzirui/careline/backend/internal/middleware"
	personaModel "github.com/zhouzirui/careline/backend/internal/model/persona"
	aiService "github.com/zhouzirui/careline/backend/internal/service/ai"
	chatService "github.com/zhouzirui/careline/backend/internal/service/chat"
)

// Dependencies groups what the router wires into handlers.
type Dependencies struct {
	Personas       personaModel.Store
	Chat           *chatService.Service
	Responder      aiService.Responder // nil disables /chat with 503
	ContextTurns   int
	AllowedOrigins []string
	Widget         *widget.Handler // nil disables /ws
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger.WithComponent("http")))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	personaHandler := persona.New(deps.Personas)
	chatHandler := chat.New(deps.Chat, deps.Responder, deps.Personas, deps.ContextTurns)

	chatHandler.RegisterRoutes(r)
	personaHandler.RegisterRoutes(r)
	if deps.Widget != nil {
		deps.Widget.RegisterRoutes(r)
	}
	r.Handle("/metrics", promhttp.Handler())

	return r
}
