package health

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	model "github.com/unycompass/chatbot-gateway/internal/model/chatbot"
	"github.com/unycompass/chatbot-gateway/internal/service/chatbot"
	"github.com/unycompass/chatbot-gateway/pkg/utils"
)

// Handler serves the legacy root health endpoints.
type Handler struct {
	state *chatbot.State
}

// New creates a health handler reading from state.
func New(state *chatbot.State) *Handler {
	return &Handler{state: state}
}

// RegisterRoutes registers GET / and GET /status.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleHealth)
	r.Get("/status", h.handleStatus)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, model.Health{
		Status:       "healthy",
		Message:      "Hunter College Chatbot API is running",
		ChatbotReady: h.state.Ready(),
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := model.Status{Status: "ready", ChatbotReady: true}
	if !h.state.Ready() {
		text := h.state.ErrText()
		resp = model.Status{Status: "error", ChatbotReady: false, Error: &text}
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}
