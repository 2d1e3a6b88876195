package api

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/nurdspace/nurdbar/internal/logger"
	"github.com/nurdspace/nurdbar/internal/model"
	"github.com/nurdspace/nurdbar/internal/store"
)

// UsersHandler handles operator management endpoints.
type UsersHandler struct {
	DB  *sql.DB
	Log *logger.Logger
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=admin treasurer bartender"`
}

type updateUserRequest struct {
	Role string `json:"role" validate:"required,oneof=admin treasurer bartender"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers(r.Context(), h.DB)
	if err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	jsonResponse(w, http.StatusOK, users)
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	user, err := store.CreateUser(ctx, h.DB, req.Username, hash, req.Role)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	h.Log.Info(h.Log.WithFields(ctx, map[string]any{"new_user": user.Username, "role": user.Role}), "operator created")
	jsonResponse(w, http.StatusCreated, user)
}

// Get handles GET /api/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	user, err := store.GetUser(ctx, h.DB, id)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// Update handles PUT /api/users/{id}. The last admin cannot be demoted.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	target, err := h.activeUser(r, id)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	if target.Role == model.RoleAdmin && req.Role != model.RoleAdmin {
		if err := h.keepAnAdmin(r); err != nil {
			writeError(ctx, h.Log, w, err)
			return
		}
	}

	if err := store.UpdateUserRole(ctx, h.DB, id, req.Role); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	target.Role = req.Role

	h.Log.Info(h.Log.WithFields(ctx, map[string]any{"target_user": target.Username, "new_role": req.Role}), "operator role updated")
	jsonResponse(w, http.StatusOK, target)
}

// ResetPassword handles PUT /api/users/{id}/password.
func (h *UsersHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	if err := store.UpdateUserPassword(ctx, h.DB, id, hash); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	h.Log.Info(h.Log.WithField(ctx, "target_user", fmt.Sprintf("id:%d", id)), "operator password reset")
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// Delete handles DELETE /api/users/{id}. Operators cannot delete themselves
// or the last admin.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	if claims := GetClaims(ctx); claims != nil && claims.UserID == id {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	target, err := h.activeUser(r, id)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	if target.Role == model.RoleAdmin {
		if err := h.keepAnAdmin(r); err != nil {
			writeError(ctx, h.Log, w, err)
			return
		}
	}

	if err := store.DeleteUser(ctx, h.DB, id); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	h.Log.Info(h.Log.WithField(ctx, "deleted_user", target.Username), "operator deleted")
	jsonResponse(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

func (h *UsersHandler) activeUser(r *http.Request, id int64) (*model.User, error) {
	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		return nil, err
	}
	if user == nil || user.DeletedAt != nil {
		return nil, fmt.Errorf("user %d: %w", id, model.ErrNotFound)
	}
	return user, nil
}

func (h *UsersHandler) keepAnAdmin(r *http.Request) error {
	n, err := store.CountAdmins(r.Context(), h.DB)
	if err != nil {
		return err
	}
	if n <= 1 {
		return invalid("cannot remove the last admin")
	}
	return nil
}
