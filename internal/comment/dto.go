// AngelaMos | 2026
// dto.go

package comment

import (
	"time"

	"github.com/rzkfyn/ujikom-app-be/internal/user"
)

// CreateRequest carries the fields of a JSON or multipart comment body.
// Media files only arrive through multipart.
type CreateRequest struct {
	Text             string  `json:"text"               validate:"max=1000"`
	RepliedCommentID *string `json:"replied_comment_id" validate:"omitempty,uuid"`
}

type MediaResponse struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type Response struct {
	ID               string          `json:"id"`
	PostID           string          `json:"post_id"`
	Author           user.Summary    `json:"author"`
	RepliedCommentID *string         `json:"replied_comment_id,omitempty"`
	Text             string          `json:"text"`
	Media            []MediaResponse `json:"media"`
	LikeCount        int             `json:"like_count"`
	Liked            bool            `json:"liked"`
	CreatedAt        time.Time       `json:"created_at"`
}

func ToResponse(it *Item) Response {
	media := make([]MediaResponse, 0, len(it.Media))
	for _, m := range it.Media {
		media = append(media, MediaResponse{
			URL:         m.URL,
			ContentType: m.ContentType,
			Size:        m.SizeBytes,
		})
	}

	return Response{
		ID:               it.ID,
		PostID:           it.PostID,
		Author:           it.Author,
		RepliedCommentID: it.RepliedCommentID,
		Text:             it.Text,
		Media:            media,
		LikeCount:        it.LikeCount,
		Liked:            it.Liked,
		CreatedAt:        it.CreatedAt,
	}
}

func toResponseList(items []Item) []Response {
	out := make([]Response, len(items))
	for i := range items {
		out[i] = ToResponse(&items[i])
	}
	return out
}
