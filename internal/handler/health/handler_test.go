package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/unycompass/chatbot-gateway/internal/model/chatbot"
	"github.com/unycompass/chatbot-gateway/internal/service/chatbot"
)

type okBot struct{}

func (okBot) AnswerQuestion(context.Context, string, model.SessionID) (string, error) {
	return "ok", nil
}

func (okBot) ClearSessionMemory(context.Context, model.SessionID) error { return nil }

func setupRouter(factory chatbot.Factory) *chi.Mux {
	r := chi.NewRouter()
	New(chatbot.Initialize(context.Background(), factory)).RegisterRoutes(r)
	return r
}

func get(t *testing.T, r http.Handler, path string) map[string]any {
	t.Helper()
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestHealthReady(t *testing.T) {
	r := setupRouter(func(context.Context) (chatbot.Bot, error) { return okBot{}, nil })

	body := get(t, r, "/")
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["chatbot_ready"])

	body = get(t, r, "/status")
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, true, body["chatbot_ready"])
	assert.Contains(t, body, "error")
	assert.Nil(t, body["error"])
}

func TestHealthNotReady(t *testing.T) {
	r := setupRouter(func(context.Context) (chatbot.Bot, error) { return nil, errors.New("no index") })

	body := get(t, r, "/")
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["chatbot_ready"])

	body = get(t, r, "/status")
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, false, body["chatbot_ready"])
	assert.Equal(t, "no index", body["error"])
}
