// ABOUTME: HTTP middleware for API key and JWT authentication
// ABOUTME: Accepts Bearer or x-api-key credentials and enforces rate limits

package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a bearer token fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Authenticator validates request credentials and applies rate limits.
// Static API keys and HS256 bearer tokens share the same middleware.
type Authenticator struct {
	requireAuth bool
	apiKeys     map[string]struct{}
	jwtParser   *jwt.Parser
	jwtSecret   []byte
	limiter     *RateLimiter
	logger      *slog.Logger
}

// Options configures an Authenticator.
type Options struct {
	// RequireAuth enables credential checks. When false every request
	// passes through as anonymous.
	RequireAuth bool

	// APIKeys is the set of accepted static keys.
	APIKeys []string

	// JWTSecret enables HS256 bearer token verification. Empty disables
	// token auth, leaving only static keys.
	JWTSecret []byte

	// Limiter applies per-client rate limiting. Optional.
	Limiter *RateLimiter
}

// New creates an Authenticator.
func New(opts Options, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	keys := make(map[string]struct{}, len(opts.APIKeys))
	for _, k := range opts.APIKeys {
		if k != "" {
			keys[k] = struct{}{}
		}
	}
	a := &Authenticator{
		requireAuth: opts.RequireAuth,
		apiKeys:     keys,
		limiter:     opts.Limiter,
		logger:      logger,
	}
	if len(opts.JWTSecret) > 0 {
		a.jwtSecret = opts.JWTSecret
		a.jwtParser = jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		)
	}
	return a
}

// extractCredential pulls a credential from the Authorization header or
// the x-api-key header. Returns empty when neither is present.
func extractCredential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimPrefix(h, "Bearer ")
		}
		return ""
	}
	return r.Header.Get("x-api-key")
}

// authenticate resolves a credential to an AuthContext. It tries the
// static key set first, then falls back to bearer token verification.
func (a *Authenticator) authenticate(credential string) *AuthContext {
	if _, ok := a.apiKeys[credential]; ok {
		return &AuthContext{ClientID: truncateKey(credential), Method: "api_key"}
	}
	if a.jwtParser != nil {
		if clientID, err := a.verifyToken(credential); err == nil {
			return &AuthContext{ClientID: clientID, Method: "jwt"}
		}
	}
	return nil
}

// verifyToken checks the token's HS256 signature and expiry and returns
// the client id carried in the subject claim.
func (a *Authenticator) verifyToken(credential string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := a.jwtParser.ParseWithClaims(credential, &claims, func(*jwt.Token) (any, error) {
		return a.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Middleware wraps next with credential validation and rate limiting.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := &AuthContext{ClientID: r.RemoteAddr, Method: "anonymous"}

		if a.requireAuth {
			credential := extractCredential(r)
			if credential == "" {
				writeAuthError(w, http.StatusUnauthorized, "Missing API key", "missing_api_key")
				return
			}
			authCtx = a.authenticate(credential)
			if authCtx == nil {
				a.logger.Warn("rejected request with invalid credential", "path", r.URL.Path)
				writeAuthError(w, http.StatusUnauthorized, "Invalid API key or token", "invalid_api_key")
				return
			}
		}

		if a.limiter != nil && !a.limiter.Allow(authCtx.ClientID) {
			writeRateLimitError(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
	})
}

// truncateKey shortens a key for use as a log-safe client identifier.
func truncateKey(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8]
}

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeAuthError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: errorBody{
		Message: message,
		Type:    "authentication_error",
		Code:    code,
	}})
}

func writeRateLimitError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: errorBody{
		Message: "Rate limit exceeded, please slow down",
		Type:    "rate_limit_error",
		Code:    "rate_limit_exceeded",
	}})
}
