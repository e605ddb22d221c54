package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/taskhive/taskhive/internal/auth"
	"github.com/taskhive/taskhive/internal/model"
	"github.com/taskhive/taskhive/internal/repository"
)

// TokenVerifier checks a bearer token and returns its subject.
type TokenVerifier interface {
	Verify(tokenString string) (string, error)
}

// UserSource resolves a username to a user record.
// Not-found is signaled with repository.ErrUserNotFound.
type UserSource interface {
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}

// IdentityCache caches resolved users between requests.
type IdentityCache interface {
	GetUser(ctx context.Context, username string) (*model.User, error)
	SetUser(ctx context.Context, user *model.User) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger *slog.Logger
	Codec  TokenVerifier
	Users  UserSource
	Cache  IdentityCache // optional
}

// Auth returns a middleware that authenticates requests via bearer
// tokens. It extracts the token from the Authorization header, verifies
// it, resolves the subject to a user record and injects the user into
// the request context. Every authentication failure returns the
// identical 401 response so a caller cannot tell why it failed; a
// store outage during subject resolution is a 500 instead.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "missing_token"),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			subject, err := cfg.Codec.Verify(token)
			if err != nil {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "invalid_token"),
					slog.String("error", err.Error()),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			// Check cache first
			var user *model.User
			cacheHit := false
			if cfg.Cache != nil {
				user, _ = cfg.Cache.GetUser(r.Context(), subject)
				cacheHit = user != nil
			}

			if user == nil {
				user, err = cfg.Users.GetUserByUsername(r.Context(), subject)
				if err != nil {
					// A valid token whose subject no longer exists must
					// not resolve; the account may have been deleted
					// after issuance.
					if errors.Is(err, repository.ErrUserNotFound) {
						cfg.Logger.Warn("authentication failed",
							slog.String("reason", "unknown_subject"),
							slog.String("ip", r.RemoteAddr),
							slog.String("endpoint", r.Method+" "+r.URL.Path),
							slog.String("request_id", GetRequestID(r.Context())),
						)
						writeAuthError(w)
						return
					}

					// A store failure is not an authentication verdict.
					// Surface it as a server error without a bearer
					// challenge.
					cfg.Logger.Error("database error during auth",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					writeServerError(w)
					return
				}

				if cfg.Cache != nil {
					_ = cfg.Cache.SetUser(r.Context(), user)
				}
			}

			cfg.Logger.Info("authentication successful",
				slog.Int64("user_id", user.ID),
				slog.String("username", user.Username),
				slog.Bool("cache_hit", cacheHit),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken extracts the token from the Authorization header.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// writeAuthError writes a 401 Unauthorized response with a bearer
// challenge. Uses the same message for all auth failures to prevent
// enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Could not validate credentials","code":"UNAUTHORIZED"}`))
}

// writeServerError writes a 500 response for failures that are not an
// authentication verdict, such as a store outage during subject
// resolution.
func writeServerError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(`{"error":"An internal error occurred","code":"INTERNAL_ERROR"}`))
}
