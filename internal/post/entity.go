// AngelaMos | 2026
// entity.go

package post

import (
	"time"

	"github.com/rzkfyn/ujikom-app-be/internal/core"
	"github.com/rzkfyn/ujikom-app-be/internal/user"
)

const (
	CodeLength    = 8
	MaxTextLength = 2200
)

type Post struct {
	ID           string     `db:"id"`
	Code         string     `db:"code"`
	AuthorID     string     `db:"author_id"`
	Text         string     `db:"text"`
	SharedPostID *string    `db:"shared_post_id"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at"`
}

func (p *Post) IsShare() bool {
	return p.SharedPostID != nil
}

type Media struct {
	ID          string `db:"id"`
	PostID      string `db:"post_id"`
	ObjectKey   string `db:"object_key"`
	URL         string `db:"url"`
	ContentType string `db:"content_type"`
	SizeBytes   int64  `db:"size_bytes"`
	Position    int    `db:"position"`
}

// Item is a post as a particular viewer sees it.
type Item struct {
	Post
	Author       user.Summary `db:"author"`
	SharedCode   *string      `db:"shared_code"`
	LikeCount    int          `db:"like_count"`
	CommentCount int          `db:"comment_count"`
	ShareCount   int          `db:"share_count"`
	Liked        bool         `db:"liked"`
	Saved        bool         `db:"saved"`
	Media        []Media      `db:"-"`
}

type Scope int

const (
	ScopeLatest Scope = iota
	ScopeFeed
	ScopeAuthor
	ScopeSaved
)

type ListQuery struct {
	ViewerID string
	Scope    Scope
	AuthorID string
	Cursor   core.Cursor
}

// Purged lists what a post deletion removed alongside the post row.
type Purged struct {
	CommentIDs []string
	MediaKeys  []string
}
