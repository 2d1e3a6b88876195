package api

import (
	"database/sql"
	"net/http"

	"github.com/nurdspace/nurdbar/internal/auth"
	"github.com/nurdspace/nurdbar/internal/logger"
	"github.com/nurdspace/nurdbar/internal/model"
	"github.com/nurdspace/nurdbar/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	DB     *sql.DB
	Signer *auth.Signer
	Log    *logger.Logger
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	user, err := store.GetUserByUsername(ctx, h.DB, req.Username)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		h.Log.Warn(h.Log.WithFields(ctx, map[string]any{"username": req.Username, "remote": r.RemoteAddr}), "login failed")
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, claims, err := h.Signer.GenerateToken(user)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	h.Log.Info(h.Log.WithOperator(ctx, user.Username, user.Role), "operator logged in")
	jsonResponse(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: claims.ExpiresAt.Unix()})
}

// Logout handles POST /api/auth/logout by revoking the presented token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := GetClaims(ctx)
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := store.RevokeToken(ctx, h.DB, claims.ID, claims.ExpiresAt.Time); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	h.Log.Info(ctx, "operator logged out")
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := GetClaims(ctx)
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	user, err := store.GetUser(ctx, h.DB, claims.UserID)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	if user == nil {
		writeError(ctx, h.Log, w, model.ErrNotFound)
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		jsonError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	if err := store.UpdateUserPassword(ctx, h.DB, claims.UserID, hash); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	h.Log.Info(ctx, "operator changed own password")
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// hashPassword reports a password policy violation as a client error.
func hashPassword(password string) (string, error) {
	if err := model.ValidatePassword(password); err != nil {
		return "", invalid(err.Error())
	}
	return auth.HashPassword(password)
}
