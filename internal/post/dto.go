// AngelaMos | 2026
// dto.go

package post

import (
	"time"

	"github.com/rzkfyn/ujikom-app-be/internal/user"
)

type ShareRequest struct {
	Text string `json:"text" validate:"max=2200"`
}

type MediaResponse struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type Response struct {
	ID             string          `json:"id"`
	Code           string          `json:"code"`
	Author         user.Summary    `json:"author"`
	Text           string          `json:"text"`
	Media          []MediaResponse `json:"media"`
	SharedPostCode *string         `json:"shared_post_code,omitempty"`
	IsShare        bool            `json:"is_share"`
	LikeCount      int             `json:"like_count"`
	CommentCount   int             `json:"comment_count"`
	ShareCount     int             `json:"share_count"`
	Liked          bool            `json:"liked"`
	Saved          bool            `json:"saved"`
	CreatedAt      time.Time       `json:"created_at"`
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
		ID:             it.ID,
		Code:           it.Code,
		Author:         it.Author,
		Text:           it.Text,
		Media:          media,
		SharedPostCode: it.SharedCode,
		IsShare:        it.IsShare(),
		LikeCount:      it.LikeCount,
		CommentCount:   it.CommentCount,
		ShareCount:     it.ShareCount,
		Liked:          it.Liked,
		Saved:          it.Saved,
		CreatedAt:      it.CreatedAt,
	}
}

func toResponseList(items []Item) []Response {
	out := make([]Response, len(items))
	for i := range items {
		out[i] = ToResponse(&items[i])
	}
	return out
}
