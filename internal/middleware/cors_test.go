package middleware

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unycompass/chatbot-gateway/internal/config"
)

func testCORSConfig() config.CORSConfig {
	return config.CORSConfig{
		AllowedOrigins: []string{"http://localhost:3000", "https://unycompass.vercel.app"},
		TrustedOrigin:  regexp.MustCompile(`^https://([a-z0-9-]+\.)*[a-z0-9-]*unycompass[a-z0-9-]*\.vercel\.app$`),
	}
}

func serveWithCORS(method, origin string, header map[string]string) *httptest.ResponseRecorder {
	h := CORS(testCORSConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(method, "/api/chatbot/ask", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestOriginPolicy(t *testing.T) {
	cfg := testCORSConfig()
	policy := NewOriginPolicy(cfg.AllowedOrigins, cfg.TrustedOrigin)

	assert.True(t, policy.Allowed("http://localhost:3000"))
	assert.True(t, policy.Allowed("https://unycompass.vercel.app"))
	assert.True(t, policy.Allowed("https://foo.unycompass.vercel.app"))
	assert.False(t, policy.Allowed("http://foo.unycompass.vercel.app"))
	assert.False(t, policy.Allowed("https://evil.example.com"))
	assert.False(t, policy.Allowed(""))

	assert.False(t, NewOriginPolicy(nil, nil).Allowed("https://foo.unycompass.vercel.app"))
}

func TestCORSTrustedOriginEchoed(t *testing.T) {
	rr := serveWithCORS(http.MethodPost, "https://foo.unycompass.vercel.app", nil)

	assert.Equal(t, "https://foo.unycompass.vercel.app", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSStaticOriginEchoed(t *testing.T) {
	rr := serveWithCORS(http.MethodGet, "http://localhost:3000", nil)

	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSUnknownOriginGetsNoHeaders(t *testing.T) {
	rr := serveWithCORS(http.MethodPost, "https://evil.example.com", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSPreflightPassesThrough(t *testing.T) {
	rr := serveWithCORS(http.MethodOptions, "https://foo.unycompass.vercel.app", map[string]string{
		"Access-Control-Request-Method":  http.MethodPost,
		"Access-Control-Request-Headers": "Content-Type",
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://foo.unycompass.vercel.app", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}
