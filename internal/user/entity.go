// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

type User struct {
	ID              string     `db:"id"`
	Username        string     `db:"username"`
	Email           string     `db:"email"`
	PasswordHash    string     `db:"password_hash"`
	Name            string     `db:"name"`
	Role            string     `db:"role"`
	TokenVersion    int        `db:"token_version"`
	EmailVerifiedAt *time.Time `db:"email_verified_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
	DeletedAt       *time.Time `db:"deleted_at"`
}

func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) IsEmailVerified() bool {
	return u.EmailVerifiedAt != nil
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	VisibilityPublic  = "PUBLIC"
	VisibilityPrivate = "PRIVATE"
)

type Profile struct {
	UserID      string     `db:"user_id"`
	Bio         string     `db:"bio"`
	Location    string     `db:"location"`
	URL         string     `db:"url"`
	Gender      string     `db:"gender"`
	DateOfBirth *time.Time `db:"date_of_birth"`
	AvatarKey   *string    `db:"avatar_key"`
	AvatarURL   *string    `db:"avatar_url"`
	CoverKey    *string    `db:"cover_key"`
	CoverURL    *string    `db:"cover_url"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

type AccountSetting struct {
	UserID     string    `db:"user_id"`
	Visibility string    `db:"visibility"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (s *AccountSetting) IsPrivate() bool {
	return s.Visibility == VisibilityPrivate
}

type Presence struct {
	Status   string     `db:"status"`
	LastSeen *time.Time `db:"last_seen"`
}

// Summary is the minimal projection of a user attached to connections,
// notifications, posts and comments.
type Summary struct {
	ID        string  `db:"id"         json:"id"`
	Username  string  `db:"username"   json:"username"`
	Name      string  `db:"name"       json:"name"`
	AvatarURL *string `db:"avatar_url" json:"avatar_url"`
}

// Relationship describes how a viewer relates to another user.
type Relationship struct {
	IsFollowing  bool `json:"is_following"`
	IsFollowedBy bool `json:"is_followed_by"`
	HasRequested bool `json:"has_requested"`
	IsBlocking   bool `json:"is_blocking"`
	IsBlockedBy  bool `json:"-"`
}

type ImageKind string

const (
	ImageAvatar ImageKind = "avatar"
	ImageCover  ImageKind = "cover"
)
