package handlers

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ══════════════════════════════════════════════════════════════════════════════
// COACH KEY AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

// HeaderCoachKey carries the coach (pembina) key on write requests.
const HeaderCoachKey = "X-Coach-Key"

var (
	// ErrMissingKey is returned when no key was sent.
	ErrMissingKey = errors.New("coach key is required")

	// ErrInvalidKey is returned when the key does not match the stored hash.
	ErrInvalidKey = errors.New("invalid coach key")
)

// CoachKeyAuth checks a plaintext key against a bcrypt hash.
// An empty hash disables the check.
type CoachKeyAuth struct {
	hash []byte
}

// NewCoachKeyAuth creates an authenticator from a bcrypt hash.
func NewCoachKeyAuth(hash string) (*CoachKeyAuth, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return &CoachKeyAuth{}, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, err
	}
	return &CoachKeyAuth{hash: []byte(hash)}, nil
}

// HashKey hashes a plaintext coach key for the config file.
func HashKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrMissingKey
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Enabled reports whether a hash is configured.
func (a *CoachKeyAuth) Enabled() bool {
	return a != nil && len(a.hash) > 0
}

// Verify checks the key sent with r.
func (a *CoachKeyAuth) Verify(r *http.Request) error {
	if !a.Enabled() {
		return nil
	}
	key := r.Header.Get(HeaderCoachKey)
	if key == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			key = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if key == "" {
		return ErrMissingKey
	}
	if bcrypt.CompareHashAndPassword(a.hash, []byte(key)) != nil {
		return ErrInvalidKey
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GENERIC MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// SecurityHeadersMiddleware adds security-related headers.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// RequestSizeLimitMiddleware limits the size of request bodies.
func RequestSizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, `{"success":false,"error":{"code":"payload_too_large","message":"Request body too large"}}`,
					http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// MiddlewareFunc wraps an http.Handler.
type MiddlewareFunc func(http.Handler) http.Handler

// Chain applies middlewares so the first one is outermost.
func Chain(handler http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}
