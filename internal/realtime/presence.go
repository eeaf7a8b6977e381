// AngelaMos | 2026
// presence.go

package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/rzkfyn/ujikom-app-be/internal/core"
)

const (
	StatusOnline  = "ONLINE"
	StatusOffline = "OFFLINE"
)

type PresenceStore interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string, lastSeen time.Time) error
}

type presenceRepository struct {
	db core.DBTX
}

func NewPresenceRepository(db core.DBTX) PresenceStore {
	return &presenceRepository{db: db}
}

func (r *presenceRepository) SetOnline(ctx context.Context, userID string) error {
	query := `
		INSERT INTO presences (user_id, status, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, userID, StatusOnline); err != nil {
		return fmt.Errorf("set online: %w", err)
	}

	return nil
}

func (r *presenceRepository) SetOffline(
	ctx context.Context,
	userID string,
	lastSeen time.Time,
) error {
	query := `
		INSERT INTO presences (user_id, status, last_seen, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET status = EXCLUDED.status, last_seen = EXCLUDED.last_seen, updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, userID, StatusOffline, lastSeen); err != nil {
		return fmt.Errorf("set offline: %w", err)
	}

	return nil
}
