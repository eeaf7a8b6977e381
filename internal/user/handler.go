// AngelaMos | 2026
// handler.go

package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rzkfyn/ujikom-app-be/internal/core"
	"github.com/rzkfyn/ujikom-app-be/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
	}
}

// RegisterRoutes mounts /users. Other packages contribute routes under the
// same prefix through extra, e.g. /users/{username}/followers.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, optionalAuth func(http.Handler) http.Handler,
	extra ...func(r chi.Router),
) {
	r.Route("/users", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authenticator)

			r.Get("/me", h.GetMe)
			r.Put("/me", h.UpdateMe)
			r.Delete("/me", h.DeleteMe)
			r.Put("/me/profile", h.UpdateProfile)
			r.Put("/me/avatar", h.UpdateAvatar)
			r.Delete("/me/avatar", h.RemoveAvatar)
			r.Put("/me/cover", h.UpdateCover)
			r.Delete("/me/cover", h.RemoveCover)
			r.Get("/me/settings", h.GetSettings)
			r.Put("/me/settings/visibility", h.UpdateVisibility)
		})

		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)

			r.Get("/username-availability", h.UsernameAvailability)
			r.Get("/{username}", h.GetProfile)
		})

		for _, register := range extra {
			register(r)
		}
	})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.service.GetMe(r.Context(), userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	user, err := h.service.UpdateMe(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := h.service.DeleteMe(r.Context(), userID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	username := chi.URLParam(r, "username")

	profile, err := h.service.GetProfile(r.Context(), viewerID, username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, profile)
}

func (h *Handler) UsernameAvailability(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		core.BadRequest(w, "username is required")
		return
	}

	available, err := h.service.UsernameAvailable(r.Context(), username)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, AvailabilityResponse{Username: username, Available: available})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		core.HandleDomainError(w, err)
		return
	}

	core.OK(w, profile)
}

func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, ImageAvatar)
}

func (h *Handler) UpdateCover(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, ImageCover)
}

func (h *Handler) RemoveAvatar(w http.ResponseWriter, r *http.Request) {
	h.removeImage(w, r, ImageAvatar)
}

func (h *Handler) RemoveCover(w http.ResponseWriter, r *http.Request) {
	h.removeImage(w, r, ImageCover)
}

func (h *Handler) removeImage(
	w http.ResponseWriter,
	r *http.Request,
	kind ImageKind,
) {
	userID := middleware.GetUserID(r.Context())

	profile, err := h.service.RemoveImage(r.Context(), userID, kind)
	if err != nil {
		core.HandleDomainError(w, err)
		return
	}

	core.OK(w, profile)
}

func (h *Handler) updateImage(
	w http.ResponseWriter,
	r *http.Request,
	kind ImageKind,
) {
	userID := middleware.GetUserID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.service.maxImageBytes+(1<<20))
	if err := r.ParseMultipartForm(h.service.maxImageBytes); err != nil {
		core.BadRequest(w, "invalid multipart form or image too large")
		return
	}

	_, fh, err := r.FormFile("image")
	if err != nil {
		core.BadRequest(w, "image is required")
		return
	}

	profile, err := h.service.UpdateImage(r.Context(), userID, kind, fh)
	if err != nil {
		if IsImageError(err) {
			core.BadRequest(w, err.Error())
			return
		}
		core.HandleDomainError(w, err)
		return
	}

	core.OK(w, profile)
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	settings, err := h.service.GetSettings(r.Context(), userID)
	if err != nil {
		core.HandleDomainError(w, err)
		return
	}

	core.OK(w, toSettingsResponse(settings))
}

func (h *Handler) UpdateVisibility(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req UpdateVisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	settings, err := h.service.UpdateVisibility(r.Context(), userID, req.Visibility)
	if err != nil {
		core.HandleDomainError(w, err)
		return
	}

	core.OK(w, toSettingsResponse(settings))
}

// RegisterAdminRoutes registers admin-only user management endpoints.
func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/users", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.ListUsers)
		r.Get("/{userID}", h.GetUser)
		r.Put("/{userID}", h.UpdateUser)
		r.Put("/{userID}/role", h.UpdateUserRole)
		r.Delete("/{userID}", h.DeleteUser)
	})
}

// ListUsers returns a paginated list of users with optional filtering.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	params := ListUsersParams{
		Page:     core.ParseIntQuery(r, "page", 1),
		PageSize: core.ParseIntQuery(r, "page_size", 20),
		Search:   r.URL.Query().Get("search"),
		Role:     r.URL.Query().Get("role"),
	}
	params.Normalize()

	users, total, err := h.service.ListUsers(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(
		w,
		ToUserResponseList(users),
		params.Page,
		params.PageSize,
		total,
	)
}

// GetUser returns a specific user by ID (admin only).
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

// UpdateUser updates a specific user's account (admin only).
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	user, err := h.service.UpdateUser(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

// UpdateUserRole changes a user's role (admin only).
func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req UpdateUserRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	user, err := h.service.UpdateUserRole(r.Context(), userID, req.Role)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

// DeleteUser soft deletes a user account (admin only).
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	requesterID := middleware.GetUserID(r.Context())
	targetID := chi.URLParam(r, "userID")

	if err := h.service.CanDeleteUser(r.Context(), requesterID, targetID); err != nil {
		if errors.Is(err, core.ErrForbidden) {
			core.Forbidden(w, "insufficient permissions")
			return
		}
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	if err := h.service.DeleteUser(r.Context(), targetID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}
