package chatbot

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	model "github.com/unycompass/chatbot-gateway/internal/model/chatbot"
	"github.com/unycompass/chatbot-gateway/internal/service/chatbot"
	"github.com/unycompass/chatbot-gateway/pkg/utils"
)

// Handler serves the chatbot endpoints.
type Handler struct {
	state *chatbot.State
	now   func() time.Time
}

// New creates a chatbot handler bound to the initialized bot state.
func New(state *chatbot.State) *Handler {
	return &Handler{state: state, now: time.Now}
}

// RegisterRoutes registers the legacy /chat route and the /api/chatbot group.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Options("/chat", h.handlePreflight)

	r.Route("/api/chatbot", func(api chi.Router) {
		api.Get("/status", h.handleStatus)
		api.Options("/status", h.handlePreflight)
		api.Post("/ask", h.handleAsk)
		api.Options("/ask", h.handlePreflight)
		api.Post("/reset", h.handleResetDefault)
		api.Post("/reset/{sessionID:[0-9]+}", h.handleReset)
		api.Options("/*", h.handlePreflight)
	})
}

func (h *Handler) handlePreflight(w http.ResponseWriter, r *http.Request) {
	utils.RespondEmpty(w, http.StatusOK)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := model.ServiceStatus{
		Status:        "online",
		PythonWorking: true,
		Message:       "Hunter AI chatbot is ready",
		Service:       "chatbot",
	}
	if !h.state.Ready() {
		resp.Status = "error"
		resp.PythonWorking = false
		resp.Message = fmt.Sprintf("Chatbot error: %s", h.state.ErrText())
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	req, answer, ok := h.ask(w, r, false)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, model.NewAnswer(req.Text(), answer, h.now()))
}

func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	req, answer, ok := h.ask(w, r, true)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, model.SessionAnswer{
		Answer:    model.NewAnswer(req.Text(), answer, h.now()),
		SessionID: req.SessionID,
	})
}

// ask runs the shared ask pipeline. It writes the error response itself and
// reports ok=false when the request did not produce an answer.
func (h *Handler) ask(w http.ResponseWriter, r *http.Request, withSession bool) (model.AskRequest, string, bool) {
	var req model.AskRequest

	if err := h.state.Check(); err != nil {
		respondServiceError(w, err)
		return req, "", false
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, model.ErrMissingMessage.Error())
		return req, "", false
	}

	question, err := req.Validate()
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return req, "", false
	}

	session := req.SessionID
	if !withSession {
		session = model.SessionID{}
	}

	result := h.state.Ask(r.Context(), question, session)
	if !result.OK() {
		respondServiceError(w, result.Err)
		return req, "", false
	}

	hlog.FromRequest(r).Debug().
		Str("session", session.String()).
		Int("answer_len", len(result.Answer)).
		Msg("question answered")
	return req, result.Answer, true
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	session := model.NewSessionID(chi.URLParam(r, "sessionID"))
	if err := h.state.Reset(r.Context(), session); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, model.ResetResult{
		Message: fmt.Sprintf("Conversation memory for session %s reset successfully", session.String()),
	})
}

func (h *Handler) handleResetDefault(w http.ResponseWriter, r *http.Request) {
	if err := h.state.Reset(r.Context(), model.SessionID{}); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, model.ResetResult{Message: "Conversation memory reset successfully"})
}

// respondServiceError maps collaborator error kinds to HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatbot.ErrUnavailable):
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, chatbot.ErrAnswer), errors.Is(err, chatbot.ErrReset):
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
