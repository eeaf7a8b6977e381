// AngelaMos | 2026
// entity.go

package comment

import (
	"time"

	"github.com/rzkfyn/ujikom-app-be/internal/core"
	"github.com/rzkfyn/ujikom-app-be/internal/user"
)

const (
	MaxTextLength = 1000
	MaxMedia      = 4
)

type Comment struct {
	ID               string     `db:"id"`
	PostID           string     `db:"post_id"`
	AuthorID         string     `db:"author_id"`
	RepliedCommentID *string    `db:"replied_comment_id"`
	Text             string     `db:"text"`
	CreatedAt        time.Time  `db:"created_at"`
	DeletedAt        *time.Time `db:"deleted_at"`
}

func (c *Comment) IsReply() bool {
	return c.RepliedCommentID != nil
}

type Media struct {
	ID          string `db:"id"`
	CommentID   string `db:"comment_id"`
	ObjectKey   string `db:"object_key"`
	URL         string `db:"url"`
	ContentType string `db:"content_type"`
	SizeBytes   int64  `db:"size_bytes"`
	Position    int    `db:"position"`
}

// Target is a live comment together with the post it belongs to.
type Target struct {
	Comment
	PostCode     string `db:"post_code"`
	PostAuthorID string `db:"post_author_id"`
}

// Item is a comment as a particular viewer sees it.
type Item struct {
	Comment
	Author    user.Summary `db:"author"`
	LikeCount int          `db:"like_count"`
	Liked     bool         `db:"liked"`
	Media     []Media      `db:"-"`
}

type ListQuery struct {
	PostID   string
	ViewerID string
	Cursor   core.Cursor
}
