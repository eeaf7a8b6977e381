// AngelaMos | 2026
// pagination.go

package core

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

func ParseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}

// Cursor pages newest-first lists ordered by (created_at, id). Rows
// inserted by one transaction share created_at, so the id breaks ties. A
// nil Before starts at the newest row.
type Cursor struct {
	Before   *time.Time
	BeforeID string
	Limit    int
}

// BeforeIDArg is BeforeID as a query argument, NULL when unset.
func (c Cursor) BeforeIDArg() any {
	if c.BeforeID == "" {
		return nil
	}
	return c.BeforeID
}

func ParseCursor(r *http.Request, defaultLimit, maxLimit int) Cursor {
	c := Cursor{Limit: ParseIntQuery(r, "limit", defaultLimit)}
	if c.Limit < 1 {
		c.Limit = defaultLimit
	}
	if c.Limit > maxLimit {
		c.Limit = maxLimit
	}

	if raw := r.URL.Query().Get("before"); raw != "" {
		if t, id, ok := decodeCursor(raw); ok {
			c.Before = &t
			c.BeforeID = id
		}
	}

	return c
}

// NextCursor returns the opaque cursor for the page after one ending at the
// row (last, lastID), or "" when the page was not full.
func NextCursor(count, limit int, last time.Time, lastID string) string {
	if count < limit {
		return ""
	}
	raw := last.UTC().Format(time.RFC3339Nano) + "|" + lastID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(raw string) (time.Time, string, bool) {
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return time.Time{}, "", false
	}

	ts, id, found := strings.Cut(string(b), "|")
	if !found {
		return time.Time{}, "", false
	}

	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return time.Time{}, "", false
	}

	return t, id, true
}

// PageLimits bounds the page size list endpoints accept.
type PageLimits struct {
	Default int
	Max     int
}

func (l PageLimits) Cursor(r *http.Request) Cursor {
	return ParseCursor(r, l.Default, l.Max)
}
