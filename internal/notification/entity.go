// AngelaMos | 2026
// entity.go

package notification

import (
	"time"

	"github.com/rzkfyn/ujikom-app-be/internal/user"
)

type Kind string

const (
	KindUserFollow                Kind = "USER_FOLLOW"
	KindUserFollowRequest         Kind = "USER_FOLLOW_REQUEST"
	KindUserFollowRequestAccepted Kind = "USER_FOLLOW_REQUEST_ACCEPTED"
	KindPostLike                  Kind = "POST_LIKE"
	KindPostShare                 Kind = "POST_SHARE"
	KindPostComment               Kind = "POST_COMMENT"
	KindCommentReply              Kind = "COMMENT_REPLY"
	KindCommentLike               Kind = "COMMENT_LIKE"
	KindMentionOnPost             Kind = "USER_MENTION_ON_POST"
	KindMentionOnComment          Kind = "USER_MENTION_ON_COMMENT"
)

// GraphKinds are the notifications produced by follow and follow request
// edges. A block retracts all of them between the two users.
var GraphKinds = []Kind{
	KindUserFollow,
	KindUserFollowRequest,
	KindUserFollowRequestAccepted,
}

type EntityKind string

const (
	EntityPost    EntityKind = "post"
	EntityComment EntityKind = "comment"
)

type Related struct {
	Kind EntityKind
	ID   string
}

func RelatedPost(id string) *Related {
	return &Related{Kind: EntityPost, ID: id}
}

func RelatedComment(id string) *Related {
	return &Related{Kind: EntityComment, ID: id}
}

// Key identifies a notification by the action that produced it. Create and
// Remove with the same Key are inverses.
type Key struct {
	ReceiverID string
	ActorID    string
	Kind       Kind
	Related    *Related
}

type Notification struct {
	ID                string     `db:"id"`
	ReceiverID        string     `db:"receiver_id"`
	ActorID           string     `db:"actor_id"`
	Kind              Kind       `db:"kind"`
	RelatedEntityKind *string    `db:"related_entity_kind"`
	RelatedEntityID   *string    `db:"related_entity_id"`
	SeenAt            *time.Time `db:"seen_at"`
	CreatedAt         time.Time  `db:"created_at"`
	DeletedAt         *time.Time `db:"deleted_at"`
}

func (n *Notification) IsSeen() bool {
	return n.SeenAt != nil
}

// Item is a listed notification with its actor and, for post and comment
// notifications, the code of the post they point at.
type Item struct {
	Notification
	Actor    user.Summary `db:"actor"`
	PostCode *string      `db:"post_code"`
}
