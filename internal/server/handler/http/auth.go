// Package http provides the HTTP handlers of the maintenance backend:
// the auth endpoints, the defect row store and photo storage.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sitebatch/maintenance/internal/middleware"
	"github.com/sitebatch/maintenance/internal/models"
	"go.uber.org/zap"
)

// AuthService defines the interface for authentication operations
// required by the HTTP handlers.
type AuthService interface {
	SignUp(ctx context.Context, email, password, redirectTo string) (*models.User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*models.Session, error)
	SignOut(ctx context.Context, userID string) error
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UpdateUser(ctx context.Context, userID string, upd models.UserUpdate) (*models.User, error)
	Recover(ctx context.Context, email, redirectTo string) error
	Invite(ctx context.Context, email, redirectTo string) (*models.User, error)
	// Verify consumes a one-time link token of the given kind and starts a session.
	Verify(ctx context.Context, token string, kind models.TokenKind) (*models.Session, error)
	// RedirectTarget substitutes the site URL for an empty redirect.
	RedirectTarget(redirectTo string) string
}

// AuthHandler handles the /auth/v1 endpoints.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
	Log         *zap.Logger
}

// credentialsRequest is the body of sign-up, password grant, recover and invite calls.
type credentialsRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
	RedirectTo   string `json:"redirect_to"`
}

func decodeCredentials(r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, false
	}
	if rt := r.URL.Query().Get("redirect_to"); rt != "" {
		req.RedirectTo = rt
	}
	return req, true
}

// SignUp handles POST /auth/v1/signup.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(r)
	if !ok || req.Email == "" || req.Password == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	u, err := h.AuthService.SignUp(r.Context(), req.Email, req.Password, req.RedirectTo)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Token handles POST /auth/v1/token?grant_type=password|refresh_token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(r)
	if !ok {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	var (
		sess *models.Session
		err  error
	)
	switch r.URL.Query().Get("grant_type") {
	case "password":
		if req.Email == "" || req.Password == "" {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		sess, err = h.AuthService.SignInWithPassword(r.Context(), req.Email, req.Password)
	case "refresh_token":
		sess, err = h.AuthService.Refresh(r.Context(), req.RefreshToken)
	default:
		http.Error(w, "unsupported grant_type", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Logout handles POST /auth/v1/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.GetIdentityFromContext(r.Context())
	if err := h.AuthService.SignOut(r.Context(), id.UserID); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetUser handles GET /auth/v1/user.
func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.GetIdentityFromContext(r.Context())
	u, err := h.AuthService.GetUser(r.Context(), id.UserID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// UpdateUser handles PUT /auth/v1/user.
func (h *AuthHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var upd models.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	id, _ := middleware.GetIdentityFromContext(r.Context())
	u, err := h.AuthService.UpdateUser(r.Context(), id.UserID, upd)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Recover handles POST /auth/v1/recover. It answers 200 whether or not the
// address is registered.
func (h *AuthHandler) Recover(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(r)
	if !ok || req.Email == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := h.AuthService.Recover(r.Context(), req.Email, req.RedirectTo); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// Invite handles POST /auth/v1/invite.
func (h *AuthHandler) Invite(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(r)
	if !ok || req.Email == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	u, err := h.AuthService.Invite(r.Context(), req.Email, req.RedirectTo)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Verify handles GET /auth/v1/verify?token=…&type=…&redirect_to=….
//
// On success it redirects to redirect_to with the session in the URL
// fragment; on failure the fragment carries error and error_description.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := models.TokenKind(q.Get("type"))
	target := h.AuthService.RedirectTarget(q.Get("redirect_to"))

	frag := url.Values{}
	sess, err := h.AuthService.Verify(r.Context(), q.Get("token"), kind)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.Log.Error("verify failed", zap.Error(err))
		}
		frag.Set("error", "access_denied")
		frag.Set("error_description", err.Error())
	} else {
		frag.Set("access_token", sess.AccessToken)
		frag.Set("refresh_token", sess.RefreshToken)
		frag.Set("expires_in", strconv.FormatInt(sess.ExpiresIn, 10))
		frag.Set("expires_at", strconv.FormatInt(sess.ExpiresAt, 10))
		frag.Set("token_type", sess.TokenType)
		frag.Set("type", string(kind))
	}
	http.Redirect(w, r, target+"#"+frag.Encode(), http.StatusSeeOther)
}
