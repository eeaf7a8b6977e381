// AngelaMos | 2026
// cursor.go

package coretest

import (
	"time"

	"github.com/rzkfyn/ujikom-app-be/internal/core"
)

// Admits reports whether the row (createdAt, id) comes after c in a
// newest-first listing, mirroring (created_at, id) < (before, before_id).
func Admits(c core.Cursor, createdAt time.Time, id string) bool {
	if c.Before == nil {
		return true
	}
	if !createdAt.Equal(*c.Before) {
		return createdAt.Before(*c.Before)
	}
	return c.BeforeID != "" && id < c.BeforeID
}

// NewestFirst orders rows like ORDER BY created_at DESC, id DESC.
func NewestFirst(aAt time.Time, aID string, bAt time.Time, bID string) bool {
	if !aAt.Equal(bAt) {
		return aAt.After(bAt)
	}
	return aID > bID
}
