package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m2b-ebook/api/internal/auth"
	"github.com/m2b-ebook/api/internal/middleware"
)

// CredentialChecker is satisfied by *auth.Credentials.
type CredentialChecker interface {
	Check(username, password string) error
}

// SessionIssuer is satisfied by *auth.Sessions.
type SessionIssuer interface {
	TTL() time.Duration
	Issue(username string) (string, *auth.Claims, error)
	Revoke(ctx context.Context, claims *auth.Claims) error
}

// AuthHandler handles admin login and logout.
type AuthHandler struct {
	creds         CredentialChecker
	sessions      SessionIssuer
	adminWhatsApp string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(creds CredentialChecker, sessions SessionIssuer, adminWhatsApp string) *AuthHandler {
	return &AuthHandler{creds: creds, sessions: sessions, adminWhatsApp: adminWhatsApp}
}

// RegisterRoutes registers the public auth routes.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.Login)
}

// RegisterProtectedRoutes registers routes that need a valid session.
func (h *AuthHandler) RegisterProtectedRoutes(r chi.Router) {
	r.Post("/logout", h.Logout)
}

// --- Request / Response types ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success          bool   `json:"success"`
	Token            string `json:"token"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
	AdminWhatsApp    string `json:"admin_whatsapp"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// --- Handlers ---

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	if err := h.creds.Check(req.Username, req.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		log.Printf("ERROR: check credentials: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	token, _, err := h.sessions.Issue(req.Username)
	if err != nil {
		log.Printf("ERROR: issue session: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Success:          true,
		Token:            token,
		ExpiresInSeconds: int64(h.sessions.TTL() / time.Second),
		AdminWhatsApp:    h.adminWhatsApp,
	})
}

// Logout revokes the caller's token until it would have expired anyway.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.sessions.Revoke(r.Context(), claims); err != nil {
		log.Printf("ERROR: revoke session %s: %v", claims.ID, err)
		writeError(w, http.StatusServiceUnavailable, "could not end session, try again")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "logged out"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Success: false, Message: message})
}
