package middleware

import (
	"net/http"
	"regexp"

	"github.com/go-chi/cors"

	"github.com/unycompass/chatbot-gateway/internal/config"
)

// OriginPolicy decides which browser origins may call the API.
type OriginPolicy struct {
	allowed map[string]struct{}
	trusted *regexp.Regexp
}

// NewOriginPolicy builds the policy from the static allow list and the
// trusted-domain pattern. A nil pattern disables dynamic matching.
func NewOriginPolicy(origins []string, trusted *regexp.Regexp) *OriginPolicy {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return &OriginPolicy{allowed: allowed, trusted: trusted}
}

// Allowed reports whether origin receives CORS headers.
func (p *OriginPolicy) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	if _, ok := p.allowed[origin]; ok {
		return true
	}
	return p.trusted != nil && p.trusted.MatchString(origin)
}

// CORS returns the cross-origin middleware. Preflight requests are passed
// through to the route so OPTIONS handlers answer them.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	policy := NewOriginPolicy(cfg.AllowedOrigins, cfg.TrustedOrigin)

	return cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return policy.Allowed(origin)
		},
		AllowedMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials:   true,
		OptionsPassthrough: true,
	})
}
