// AngelaMos | 2026
// handler.go

package graph

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rzkfyn/ujikom-app-be/internal/core"
	"github.com/rzkfyn/ujikom-app-be/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// UserRoutes returns the routes mounted below /users/{username}.
func (h *Handler) UserRoutes(
	authenticator, optionalAuth func(http.Handler) http.Handler,
) func(r chi.Router) {
	return func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authenticator)

			r.Post("/{username}/follow", h.Follow)
			r.Delete("/{username}/follow", h.Unfollow)
			r.Delete("/{username}/follower", h.RemoveFollower)
			r.Post("/{username}/block", h.Block)
			r.Delete("/{username}/block", h.Unblock)
		})

		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)

			r.Get("/{username}/followers", h.connections(DirectionFollowers))
			r.Get("/{username}/following", h.connections(DirectionFollowing))
			r.Get("/{username}/mutuals", h.Mutuals)
		})
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/follow-requests", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.IncomingRequests)
		r.Get("/sent", h.SentRequests)
		r.Post("/{username}/accept", h.AcceptRequest)
		r.Post("/{username}/reject", h.RejectRequest)
		r.Delete("/{username}", h.CancelRequest)
	})

	r.With(authenticator).Get("/blocks", h.ListBlocked)
}

func (h *Handler) Follow(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())

	status, err := h.service.Follow(r.Context(), actorID, chi.URLParam(r, "username"))
	if err != nil {
		core.HandleDomainError(w, err)
		return
	}

	if status == StatusRequested {
		core.Accepted(w, FollowResponse{Status: status})
		return
	}
	core.Created(w, FollowResponse{Status: status})
}

func (h *Handler) Unfollow(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Unfollow)
}

func (h *Handler) RemoveFollower(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.RemoveFollower)
}

func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Block)
}

func (h *Handler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Unblock)
}

func (h *Handler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.AcceptFollowRequest)
}

func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.RejectFollowRequest)
}

func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.CancelFollowRequest)
}

// mutate runs a graph operation between the caller and the {username} path
// parameter and answers 204 on success.
func (h *Handler) mutate(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, userID, username string) error,
) {
	userID := middleware.GetUserID(r.Context())

	if err := op(r.Context(), userID, chi.URLParam(r, "username")); err != nil {
		core.HandleDomainError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) connections(dir Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewerID := middleware.GetUserID(r.Context())

		users, err := h.service.GetConnections(
			r.Context(),
			viewerID,
			chi.URLParam(r, "username"),
			dir,
		)
		if err != nil {
			core.HandleDomainError(w, err)
			return
		}

		core.OK(w, toConnections(dir, users))
	}
}

func (h *Handler) Mutuals(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())

	users, err := h.service.GetMutualConnections(
		r.Context(),
		viewerID,
		chi.URLParam(r, "username"),
	)
	if err != nil {
		core.HandleDomainError(w, err)
		return
	}

	core.OK(w, toConnections("", users))
}

func (h *Handler) IncomingRequests(w http.ResponseWriter, r *http.Request) {
	h.listRequests(w, r, true)
}

func (h *Handler) SentRequests(w http.ResponseWriter, r *http.Request) {
	h.listRequests(w, r, false)
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request, incoming bool) {
	userID := middleware.GetUserID(r.Context())

	items, err := h.service.ListFollowRequests(r.Context(), userID, incoming)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, toRequestResponses(items))
}

func (h *Handler) ListBlocked(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	users, err := h.service.ListBlocked(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, toConnections("", users))
}
