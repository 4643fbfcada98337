package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"jetsflare/internal/config"

	"golang.org/x/time/rate"
)

// Auth enforces bearer-token auth and per-token rate limiting. The payment
// webhook and the health probe carry their own authentication and bypass
// the token check.
type Auth struct {
	cfg      config.APIConfig
	limiters sync.Map // map[string]*rate.Limiter
}

func NewAuth(cfg config.APIConfig) *Auth {
	return &Auth{cfg: cfg}
}

func (a *Auth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := a.authenticate(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}

		if requiresAdmin(r.URL.Path) && !token.Admin {
			writeError(w, http.StatusForbidden, "admin token required")
			return
		}

		if !a.allow(token.Token) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authenticate matches the Authorization header against the configured
// tokens. Every candidate is compared in constant time so a mismatch does
// not leak prefix length.
func (a *Auth) authenticate(r *http.Request) (config.APIToken, bool) {
	header := r.Header.Get("Authorization")
	presented, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return config.APIToken{}, false
	}
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return config.APIToken{}, false
	}

	var matched config.APIToken
	var matchedOK bool
	for _, t := range a.cfg.Auth.Tokens {
		if subtle.ConstantTimeCompare([]byte(t.Token), []byte(presented)) == 1 {
			matched = t
			matchedOK = true
		}
	}
	return matched, matchedOK
}

func (a *Auth) allow(tokenKey string) bool {
	if a.cfg.RateLimit.RPS <= 0 {
		return true
	}
	return a.getLimiter(tokenKey).Allow()
}

func (a *Auth) getLimiter(key string) *rate.Limiter {
	if v, ok := a.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := a.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 10
	}

	lim := rate.NewLimiter(rate.Limit(a.cfg.RateLimit.RPS), burst)
	actual, loaded := a.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}

func isPublicPath(path string) bool {
	return path == "/healthz" || path == "/api/v1/payments/webhook"
}

// requiresAdmin gates everything except the node-agent endpoints. Node
// agents register, heartbeat, pull clients and push traffic; all other
// routes belong to admin tooling.
func requiresAdmin(path string) bool {
	if path == "/api/v1/nodes/register" {
		return false
	}
	if strings.HasPrefix(path, "/api/v1/nodes/") {
		switch {
		case strings.HasSuffix(path, "/heartbeat"),
			strings.HasSuffix(path, "/clients"),
			strings.HasSuffix(path, "/traffic"):
			return false
		}
	}
	return true
}
