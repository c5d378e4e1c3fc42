package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/unycompass/chatbot-gateway/internal/config"
	"github.com/unycompass/chatbot-gateway/internal/handler/chatbot"
	"github.com/unycompass/chatbot-gateway/internal/handler/health"
	middlewarePkg "github.com/unycompass/chatbot-gateway/internal/middleware"
	chatbotService "github.com/unycompass/chatbot-gateway/internal/service/chatbot"
	"github.com/unycompass/chatbot-gateway/pkg/utils"
)

// NewRouter wires HTTP routes to the initialized bot state.
func NewRouter(cfg config.CORSConfig, logger zerolog.Logger, state *chatbotService.State) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	health.New(state).RegisterRoutes(r)
	chatbot.New(state).RegisterRoutes(r)

	return r
}
