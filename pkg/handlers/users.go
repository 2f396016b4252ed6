package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentra-security/sentra-engine/pkg/apperrors"
	"github.com/sentra-security/sentra-engine/pkg/auth"
	"github.com/sentra-security/sentra-engine/pkg/models"
	"github.com/sentra-security/sentra-engine/pkg/services"
)

// AddUserRequest is the request body for adding a project member.
type AddUserRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
}

// RemoveUserRequest is the request body for removing a project member.
type RemoveUserRequest struct {
	UserID string `json:"user_id"`
}

// UpdateUserRequest is the request body for changing a member's role.
type UpdateUserRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// ListUsersResponse wraps the member list.
type ListUsersResponse struct {
	Users []*models.User `json:"users"`
}

// UsersHandler handles project membership HTTP requests.
type UsersHandler struct {
	userService services.UserService
	logger      *zap.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(userService services.UserService, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{
		userService: userService,
		logger:      logger,
	}
}

// RegisterRoutes registers the users handler's routes on the given mux.
// Membership changes require the admin role; listing is open to any member.
func (h *UsersHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("GET /api/projects/{pid}/users",
		authMiddleware.RequireAuthWithPathValidation("pid")(
			tenantMiddleware(h.List)))
	mux.HandleFunc("POST /api/projects/{pid}/users",
		authMiddleware.RequireAuthWithPathValidation("pid")(
			auth.RequireRole(models.RoleAdmin)(tenantMiddleware(h.Add))))
	mux.HandleFunc("PUT /api/projects/{pid}/users",
		authMiddleware.RequireAuthWithPathValidation("pid")(
			auth.RequireRole(models.RoleAdmin)(tenantMiddleware(h.Update))))
	mux.HandleFunc("DELETE /api/projects/{pid}/users",
		authMiddleware.RequireAuthWithPathValidation("pid")(
			auth.RequireRole(models.RoleAdmin)(tenantMiddleware(h.Remove))))
}

// List handles GET /api/projects/{pid}/users
// Returns all members of the project.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	users, err := h.userService.GetByProject(r.Context(), projectID)
	if err != nil {
		h.logger.Error("Failed to list users",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list users"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: ListUsersResponse{Users: users}}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Add handles POST /api/projects/{pid}/users
// Grants a user membership with the specified role.
func (h *UsersHandler) Add(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req AddUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	userID, ok := h.parseUserID(w, req.UserID)
	if !ok {
		return
	}

	if !h.validateRole(w, req.Role) {
		return
	}

	if err := h.userService.Add(r.Context(), projectID, userID, req.Email, req.Role); err != nil {
		h.logger.Error("Failed to add user",
			zap.String("project_id", projectID.String()),
			zap.String("user_id", userID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "add_failed", "Failed to add user"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// Update handles PUT /api/projects/{pid}/users
// Changes a member's role. Demoting the last admin is rejected.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	userID, ok := h.parseUserID(w, req.UserID)
	if !ok {
		return
	}

	if !h.validateRole(w, req.Role) {
		return
	}

	if err := h.userService.UpdateRole(r.Context(), projectID, userID, req.Role); err != nil {
		if errors.Is(err, apperrors.ErrLastAdmin) {
			if err := ErrorResponse(w, http.StatusConflict, "last_admin", "Cannot demote the last admin"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "User not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to update user",
			zap.String("project_id", projectID.String()),
			zap.String("user_id", userID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "update_failed", "Failed to update user"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Remove handles DELETE /api/projects/{pid}/users
// Removes a member. Removing the last admin is rejected.
func (h *UsersHandler) Remove(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req RemoveUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	userID, ok := h.parseUserID(w, req.UserID)
	if !ok {
		return
	}

	if err := h.userService.Remove(r.Context(), projectID, userID); err != nil {
		if errors.Is(err, apperrors.ErrLastAdmin) {
			if err := ErrorResponse(w, http.StatusConflict, "last_admin", "Cannot remove the last admin"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "User not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to remove user",
			zap.String("project_id", projectID.String()),
			zap.String("user_id", userID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "remove_failed", "Failed to remove user"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *UsersHandler) parseUserID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	if raw == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_user_id", "User ID is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_user_id", "Invalid user ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return userID, true
}

func (h *UsersHandler) validateRole(w http.ResponseWriter, role string) bool {
	if role == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_role", "Role is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	if !models.IsValidRole(role) {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_role", "Invalid role. Must be one of: admin, analyst, viewer"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	return true
}
