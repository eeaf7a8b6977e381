// AngelaMos | 2026
// dto.go

package notification

import (
	"time"

	"github.com/rzkfyn/ujikom-app-be/internal/user"
)

type RelatedResponse struct {
	Kind     string  `json:"kind"`
	ID       string  `json:"id"`
	PostCode *string `json:"post_code,omitempty"`
}

type Response struct {
	ID        string           `json:"id"`
	Kind      Kind             `json:"kind"`
	Actor     user.Summary     `json:"actor"`
	Related   *RelatedResponse `json:"related,omitempty"`
	Seen      bool             `json:"seen"`
	SeenAt    *time.Time       `json:"seen_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

type UnseenCountResponse struct {
	Unseen int `json:"unseen"`
}

func toResponse(item Item) Response {
	resp := Response{
		ID:        item.ID,
		Kind:      item.Kind,
		Actor:     item.Actor,
		Seen:      item.IsSeen(),
		SeenAt:    item.SeenAt,
		CreatedAt: item.CreatedAt,
	}

	if item.RelatedEntityKind != nil && item.RelatedEntityID != nil {
		resp.Related = &RelatedResponse{
			Kind:     *item.RelatedEntityKind,
			ID:       *item.RelatedEntityID,
			PostCode: item.PostCode,
		}
	}

	return resp
}

func toResponseList(items []Item) []Response {
	out := make([]Response, 0, len(items))
	for _, item := range items {
		out = append(out, toResponse(item))
	}
	return out
}
