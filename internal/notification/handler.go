// AngelaMos | 2026
// handler.go

package notification

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rzkfyn/ujikom-app-be/internal/core"
	"github.com/rzkfyn/ujikom-app-be/internal/middleware"
)

type Handler struct {
	service *Service
	pages   core.PageLimits
}

func NewHandler(service *Service, pages core.PageLimits) *Handler {
	return &Handler{
		service: service,
		pages:   pages,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/notifications", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.List)
		r.Get("/unseen-count", h.UnseenCount)
		r.Post("/seen", h.MarkAllSeen)
		r.Delete("/{notificationID}", h.Delete)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	page, err := h.service.List(r.Context(), userID, h.pages.Cursor(r))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	unseen := page.Unseen
	core.WithMeta(w, page.Items, core.Meta{
		NextCursor: page.NextCursor,
		Unseen:     &unseen,
	})
}

func (h *Handler) UnseenCount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	count, err := h.service.UnseenCount(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, UnseenCountResponse{Unseen: count})
}

func (h *Handler) MarkAllSeen(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := h.service.MarkAllSeen(r.Context(), userID); err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	id := chi.URLParam(r, "notificationID")
	if _, err := uuid.Parse(id); err != nil {
		core.NotFound(w, "notification")
		return
	}

	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		core.HandleDomainError(w, err)
		return
	}

	core.NoContent(w)
}
