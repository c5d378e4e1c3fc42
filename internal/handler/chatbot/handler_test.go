package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/unycompass/chatbot-gateway/internal/model/chatbot"
	chatbotservice "github.com/unycompass/chatbot-gateway/internal/service/chatbot"
)

type stubBot struct {
	mu        sync.Mutex
	answer    string
	answerErr error
	resetErr  error
	questions []string
	sessions  []string
	resets    []string
}

func (b *stubBot) AnswerQuestion(_ context.Context, question string, session model.SessionID) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.questions = append(b.questions, question)
	b.sessions = append(b.sessions, session.String())
	return b.answer, b.answerErr
}

func (b *stubBot) ClearSessionMemory(_ context.Context, session model.SessionID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resets = append(b.resets, session.String())
	return b.resetErr
}

func setupRouter(bot *stubBot, initErr error) *chi.Mux {
	state := chatbotservice.Initialize(context.Background(), func(context.Context) (chatbotservice.Bot, error) {
		if initErr != nil {
			return nil, initErr
		}
		return bot, nil
	})

	r := chi.NewRouter()
	New(state).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestAskRejectsMissingOrBlankMessage(t *testing.T) {
	bot := &stubBot{answer: "unused"}
	r := setupRouter(bot, nil)

	for _, path := range []string{"/chat", "/api/chatbot/ask"} {
		for _, body := range []string{`{}`, `{"message":""}`, `{"message":"   "}`, `{"message":null}`, `not json`, ``} {
			rr := do(r, http.MethodPost, path, body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, "path=%s body=%q", path, body)
			assert.Contains(t, decode(t, rr), "error")
		}
	}

	assert.Empty(t, bot.questions)
}

func TestChatReturnsAnswer(t *testing.T) {
	bot := &stubBot{answer: "Hunter offers over 170 programs."}
	r := setupRouter(bot, nil)

	rr := do(r, http.MethodPost, "/chat", `{"message":"What majors are offered?"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode(t, rr)
	assert.Equal(t, "What majors are offered?", body["question"])
	assert.Equal(t, "Hunter offers over 170 programs.", body["response"])
	assert.NotEmpty(t, body["timestamp"])
	assert.NotContains(t, body, "session_id")
	assert.Equal(t, []string{""}, bot.sessions)
}

func TestAskTrimsQuestionForBot(t *testing.T) {
	bot := &stubBot{answer: "ok"}
	r := setupRouter(bot, nil)

	rr := do(r, http.MethodPost, "/api/chatbot/ask", `{"message":"  hello  "}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"hello"}, bot.questions)
	assert.Equal(t, "  hello  ", decode(t, rr)["question"])
}

func TestAskEchoesSessionID(t *testing.T) {
	bot := &stubBot{answer: "hi there"}
	r := setupRouter(bot, nil)

	rr := do(r, http.MethodPost, "/api/chatbot/ask", `{"message":"hello","session_id":42}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"session_id":42`)
	assert.Equal(t, []string{"42"}, bot.sessions)

	body := decode(t, rr)
	assert.Equal(t, "hello", body["question"])
	assert.Equal(t, "hi there", body["response"])

	rr = do(r, http.MethodPost, "/api/chatbot/ask", `{"message":"hello","session_id":"abc"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"session_id":"abc"`)

	rr = do(r, http.MethodPost, "/api/chatbot/ask", `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"session_id":null`)
}

func TestAskRejectsStructuredSessionID(t *testing.T) {
	bot := &stubBot{answer: "ok"}
	r := setupRouter(bot, nil)

	rr := do(r, http.MethodPost, "/api/chatbot/ask", `{"message":"hello","session_id":[1]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, bot.questions)
}

func TestAskBotFailureIs500(t *testing.T) {
	bot := &stubBot{answerErr: errors.New("model timeout")}
	r := setupRouter(bot, nil)

	for _, path := range []string{"/chat", "/api/chatbot/ask"} {
		rr := do(r, http.MethodPost, path, `{"message":"hello"}`)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Contains(t, decode(t, rr)["error"], "error processing question")
	}
}

func TestUnavailableBotShortCircuits(t *testing.T) {
	r := setupRouter(nil, errors.New("index not found"))

	cases := []struct {
		path string
		body string
	}{
		{"/chat", `{"message":"hello"}`},
		{"/chat", `{}`},
		{"/api/chatbot/ask", `{"message":"hello","session_id":1}`},
		{"/api/chatbot/ask", `{"message":"  "}`},
		{"/api/chatbot/reset/7", ``},
		{"/api/chatbot/reset", ``},
	}
	for _, tc := range cases {
		rr := do(r, http.MethodPost, tc.path, tc.body)
		assert.Equal(t, http.StatusInternalServerError, rr.Code, "path=%s", tc.path)
		assert.Contains(t, decode(t, rr)["error"], "index not found")
	}

	rr := do(r, http.MethodGet, "/api/chatbot/status", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, false, body["pythonWorking"])
	assert.Equal(t, "chatbot", body["service"])
	assert.Contains(t, body["message"], "index not found")
}

func TestStatusReady(t *testing.T) {
	r := setupRouter(&stubBot{}, nil)

	rr := do(r, http.MethodGet, "/api/chatbot/status", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, true, body["pythonWorking"])
}

func TestPreflightReturnsEmpty200(t *testing.T) {
	for _, initErr := range []error{nil, errors.New("broken")} {
		bot := &stubBot{}
		r := setupRouter(bot, initErr)

		for _, path := range []string{"/api/chatbot/status", "/api/chatbot/ask", "/api/chatbot/reset/7", "/api/chatbot/reset", "/chat"} {
			rr := do(r, http.MethodOptions, path, "")
			assert.Equal(t, http.StatusOK, rr.Code, "path=%s", path)
			assert.Empty(t, rr.Body.String(), "path=%s", path)
		}
		assert.Empty(t, bot.questions)
		assert.Empty(t, bot.resets)
	}
}

func TestResetSession(t *testing.T) {
	bot := &stubBot{}
	r := setupRouter(bot, nil)

	rr := do(r, http.MethodPost, "/api/chatbot/reset/7", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, decode(t, rr)["message"], "7")
	assert.Equal(t, []string{"7"}, bot.resets)

	rr = do(r, http.MethodPost, "/api/chatbot/reset", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"7", ""}, bot.resets)
}

func TestResetSessionFailure(t *testing.T) {
	bot := &stubBot{resetErr: errors.New("memory locked")}
	r := setupRouter(bot, nil)

	rr := do(r, http.MethodPost, "/api/chatbot/reset/7", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, decode(t, rr), "error")
}

func TestResetRejectsNonNumericSession(t *testing.T) {
	bot := &stubBot{}
	r := setupRouter(bot, nil)

	rr := do(r, http.MethodPost, "/api/chatbot/reset/abc", "")
	assert.Contains(t, []int{http.StatusNotFound, http.StatusMethodNotAllowed}, rr.Code)
	assert.Empty(t, bot.resets)
}
