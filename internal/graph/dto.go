// AngelaMos | 2026
// dto.go

package graph

import (
	"time"

	"github.com/rzkfyn/ujikom-app-be/internal/user"
)

type FollowResponse struct {
	Status FollowStatus `json:"status"`
}

type ConnectionsResponse struct {
	Direction Direction      `json:"direction,omitempty"`
	Users     []user.Summary `json:"users"`
	Count     int            `json:"count"`
}

type RequestResponse struct {
	User        user.Summary `json:"user"`
	RequestedAt time.Time    `json:"requested_at"`
}

func toRequestResponses(items []RequestItem) []RequestResponse {
	out := make([]RequestResponse, 0, len(items))
	for _, item := range items {
		out = append(out, RequestResponse{
			User:        item.User,
			RequestedAt: item.CreatedAt,
		})
	}
	return out
}

func toConnections(dir Direction, users []user.Summary) ConnectionsResponse {
	if users == nil {
		users = []user.Summary{}
	}
	return ConnectionsResponse{
		Direction: dir,
		Users:     users,
		Count:     len(users),
	}
}
