package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/m2b-ebook/api/internal/auth"
)

type contextKey string

const claimsKey contextKey = "claims"

// SessionValidator is satisfied by *auth.Sessions.
type SessionValidator interface {
	Validate(ctx context.Context, tokenStr string) (*auth.Claims, error)
}

func Authenticate(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeJSON(w, http.StatusUnauthorized, errorBody("missing authorization header"))
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				writeJSON(w, http.StatusUnauthorized, errorBody("invalid authorization format"))
				return
			}

			claims, err := sessions.Validate(r.Context(), parts[1])
			if err != nil {
				if errors.Is(err, auth.ErrTokenRevoked) {
					writeJSON(w, http.StatusUnauthorized, errorBody("session has been logged out"))
					return
				}
				log.Printf("WARN: rejected bearer token: %v", err)
				writeJSON(w, http.StatusUnauthorized, errorBody("invalid or expired token"))
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

func errorBody(msg string) map[string]any {
	return map[string]any{"success": false, "message": msg}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
