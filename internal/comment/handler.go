// AngelaMos | 2026
// handler.go

package comment

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rzkfyn/ujikom-app-be/internal/core"
	"github.com/rzkfyn/ujikom-app-be/internal/middleware"
	"github.com/rzkfyn/ujikom-app-be/internal/storage"
)

const multipartMemory = 8 << 20

type Handler struct {
	service   *Service
	validator *validator.Validate
	pages     core.PageLimits
}

func NewHandler(service *Service, pages core.PageLimits) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
		pages:     pages,
	}
}

// PostRoutes returns the routes mounted below /posts.
func (h *Handler) PostRoutes(
	authenticator, optionalAuth func(http.Handler) http.Handler,
) func(r chi.Router) {
	return func(r chi.Router) {
		r.With(optionalAuth).Get("/{code}/comments", h.List)
		r.With(authenticator).Post("/{code}/comments", h.Create)
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/comments", func(r chi.Router) {
		r.Use(authenticator)

		r.Delete("/{commentID}", h.Delete)
		r.Post("/{commentID}/like", h.Like)
		r.Delete("/{commentID}/like", h.Unlike)
	})
}

// Create accepts JSON for text-only comments and multipart/form-data with
// text, replied_comment_id and media fields when images are attached.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	authorID := middleware.GetUserID(r.Context())

	var (
		req   CreateRequest
		files []*multipart.FileHeader
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		limit := h.service.cfg.MaxImageBytes*MaxMedia + (1 << 20)
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			core.BadRequest(w, "invalid multipart form or upload too large")
			return
		}
		defer r.MultipartForm.RemoveAll() //nolint:errcheck // temp files only

		req.Text = r.FormValue("text")
		if parent := r.FormValue("replied_comment_id"); parent != "" {
			req.RepliedCommentID = &parent
		}
		files = r.MultipartForm.File["media"]
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	item, err := h.service.Create(r.Context(), authorID, chi.URLParam(r, "code"), CreateInput{
		Text:             req.Text,
		RepliedCommentID: req.RepliedCommentID,
		Files:            files,
	})
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) || errors.Is(err, storage.ErrUnsupportedType) {
			core.BadRequest(w, err.Error())
			return
		}
		core.HandleDomainError(w, err)
		return
	}

	core.Created(w, ToResponse(item))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	cursor := h.pages.Cursor(r)

	items, err := h.service.List(r.Context(), viewerID, chi.URLParam(r, "code"), cursor)
	if err != nil {
		core.HandleDomainError(w, err)
		return
	}

	meta := core.Meta{PageSize: cursor.Limit}
	if n := len(items); n > 0 && viewerID != "" {
		meta.NextCursor = core.NextCursor(n, cursor.Limit, items[n-1].CreatedAt, items[n-1].ID)
	}

	core.WithMeta(w, toResponseList(items), meta)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Delete)
}

func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Like)
}

func (h *Handler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Unlike)
}

func (h *Handler) mutate(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, userID, commentID string) error,
) {
	userID := middleware.GetUserID(r.Context())

	if err := op(r.Context(), userID, chi.URLParam(r, "commentID")); err != nil {
		core.HandleDomainError(w, err)
		return
	}

	core.NoContent(w)
}
