// AngelaMos | 2026
// handler.go

package post

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rzkfyn/ujikom-app-be/internal/core"
	"github.com/rzkfyn/ujikom-app-be/internal/middleware"
	"github.com/rzkfyn/ujikom-app-be/internal/storage"
)

const multipartMemory = 32 << 20

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

// RegisterRoutes mounts /posts. writeLimit throttles post creation per
// author; extra contributes routes under the same prefix, e.g.
// /posts/{code}/comments.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, optionalAuth, writeLimit func(http.Handler) http.Handler,
	extra ...func(r chi.Router),
) {
	r.Route("/posts", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)

			r.Get("/", h.Latest)
			r.Get("/by-id/{postID}", h.GetByID)
			r.Get("/{code}", h.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticator)

			r.With(writeLimit).Post("/", h.Create)
			r.Get("/feed", h.Feed)
			r.Get("/saved", h.Saved)
			r.Delete("/{code}", h.Delete)
			r.Post("/{code}/like", h.Like)
			r.Delete("/{code}/like", h.Unlike)
			r.Post("/{code}/save", h.Save)
			r.Delete("/{code}/save", h.Unsave)
			r.Post("/{code}/share", h.Share)
		})

		for _, register := range extra {
			register(r)
		}
	})
}

// UserRoutes returns the routes mounted below /users/{username}.
func (h *Handler) UserRoutes(
	optionalAuth func(http.Handler) http.Handler,
) func(r chi.Router) {
	return func(r chi.Router) {
		r.With(optionalAuth).Get("/{username}/posts", h.ByUser)
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	authorID := middleware.GetUserID(r.Context())
	cfg := h.service.cfg

	limit := cfg.MaxMediaBytes*int64(max(cfg.MaxMediaPerPost, 1)) + (1 << 20)
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		core.BadRequest(w, "invalid multipart form or upload too large")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // temp files only

	item, err := h.service.Create(r.Context(), authorID, CreateInput{
		Text:  r.FormValue("text"),
		Files: r.MultipartForm.File["media"],
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	core.Created(w, ToResponse(item))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())

	item, err := h.service.Get(r.Context(), viewerID, chi.URLParam(r, "code"))
	if err != nil {
		core.HandleDomainError(w, err)
		return
	}

	core.OK(w, ToResponse(item))
}

func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())

	item, err := h.service.GetByID(r.Context(), viewerID, chi.URLParam(r, "postID"))
	if err != nil {
		core.HandleDomainError(w, err)
		return
	}

	core.OK(w, ToResponse(item))
}

func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, ScopeLatest)
}

func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, ScopeFeed)
}

func (h *Handler) Saved(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, ScopeSaved)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, scope Scope) {
	cursor := h.pages.Cursor(r)

	items, err := h.service.List(r.Context(), ListQuery{
		ViewerID: middleware.GetUserID(r.Context()),
		Scope:    scope,
		Cursor:   cursor,
	})
	if err != nil {
		core.HandleDomainError(w, err)
		return
	}

	writePage(w, items, cursor)
}

func (h *Handler) ByUser(w http.ResponseWriter, r *http.Request) {
	cursor := h.pages.Cursor(r)

	items, err := h.service.ListByUser(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "username"),
		cursor,
	)
	if err != nil {
		core.HandleDomainError(w, err)
		return
	}

	writePage(w, items, cursor)
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

func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Save)
}

func (h *Handler) Unsave(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Unsave)
}

func (h *Handler) Share(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())

	var req ShareRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			core.BadRequest(w, "invalid request body")
			return
		}
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	item, err := h.service.Share(r.Context(), actorID, chi.URLParam(r, "code"), req.Text)
	if err != nil {
		core.HandleDomainError(w, err)
		return
	}

	core.Created(w, ToResponse(item))
}

// mutate runs op for the caller against the {code} path parameter and
// answers 204 on success.
func (h *Handler) mutate(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, userID, code string) error,
) {
	userID := middleware.GetUserID(r.Context())

	if err := op(r.Context(), userID, chi.URLParam(r, "code")); err != nil {
		core.HandleDomainError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) handleError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrTooLarge) || errors.Is(err, storage.ErrUnsupportedType) {
		core.BadRequest(w, err.Error())
		return
	}
	core.HandleDomainError(w, err)
}

func writePage(w http.ResponseWriter, items []Item, cursor core.Cursor) {
	meta := core.Meta{PageSize: cursor.Limit}
	if n := len(items); n > 0 {
		meta.NextCursor = core.NextCursor(n, cursor.Limit, items[n-1].CreatedAt, items[n-1].ID)
	}

	core.WithMeta(w, toResponseList(items), meta)
}
