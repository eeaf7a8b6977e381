// AngelaMos | 2026
// dto.go

package user

import (
	"time"
)

type UpdateUserRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
}

type UpdateUserRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

type UpdateProfileRequest struct {
	Name        *string `json:"name,omitempty"          validate:"omitempty,min=1,max=100"`
	Bio         *string `json:"bio,omitempty"           validate:"omitempty,max=300"`
	Location    *string `json:"location,omitempty"      validate:"omitempty,max=100"`
	URL         *string `json:"url,omitempty"           validate:"omitempty,url,max=255"`
	Gender      *string `json:"gender,omitempty"        validate:"omitempty,oneof=male female other"`
	DateOfBirth *string `json:"date_of_birth,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type UpdateVisibilityRequest struct {
	Visibility string `json:"visibility" validate:"required,oneof=PUBLIC PRIVATE"`
}

type UserResponse struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ProfileResponse struct {
	ID             string        `json:"id"`
	Username       string        `json:"username"`
	Name           string        `json:"name"`
	Bio            string        `json:"bio"`
	Location       string        `json:"location"`
	URL            string        `json:"url"`
	Gender         string        `json:"gender"`
	DateOfBirth    *string       `json:"date_of_birth"`
	AvatarURL      *string       `json:"avatar_url"`
	CoverURL       *string       `json:"cover_url"`
	Visibility     string        `json:"visibility"`
	FollowersCount int           `json:"followers_count"`
	FollowingCount int           `json:"following_count"`
	Presence       string        `json:"presence"`
	LastSeen       *time.Time    `json:"last_seen,omitempty"`
	Relationship   *Relationship `json:"relationship,omitempty"`
	IsSelf         bool          `json:"is_self"`
	JoinedAt       time.Time     `json:"joined_at"`
}

type SettingsResponse struct {
	Visibility string    `json:"visibility"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type AvailabilityResponse struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}

type ListUsersParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Search   string `json:"search"`
	Role     string `json:"role"`
}

func (p *ListUsersParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListUsersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		EmailVerified: u.IsEmailVerified(),
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func ToUserResponseList(users []User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, ToUserResponse(&u))
	}
	return responses
}

func toSettingsResponse(s *AccountSetting) SettingsResponse {
	return SettingsResponse{
		Visibility: s.Visibility,
		UpdatedAt:  s.UpdatedAt,
	}
}
