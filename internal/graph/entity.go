// AngelaMos | 2026
// entity.go

package graph

import (
	"time"

	"github.com/rzkfyn/ujikom-app-be/internal/user"
)

// Edges are stored as (follower_id, followee_id), (requester_id,
// requested_id) and (blocker_id, blocked_id): the first column is always
// the user who acted.

type Direction string

const (
	DirectionFollowers Direction = "followers"
	DirectionFollowing Direction = "following"
)

// Target is the user a graph operation is aimed at.
type Target struct {
	ID         string `db:"id"`
	Username   string `db:"username"`
	Visibility string `db:"visibility"`
}

func (t *Target) IsPrivate() bool {
	return t.Visibility == user.VisibilityPrivate
}

type FollowStatus string

const (
	StatusFollowing FollowStatus = "following"
	StatusRequested FollowStatus = "requested"
)

// RequestItem is a pending follow request together with the user on the
// other side of it.
type RequestItem struct {
	User      user.Summary `db:"user"`
	CreatedAt time.Time    `db:"created_at"`
}
