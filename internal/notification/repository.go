// AngelaMos | 2026
// repository.go

package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rzkfyn/ujikom-app-be/internal/core"
)

type Repository interface {
	WithTx(tx core.DBTX) Repository
	Insert(ctx context.Context, n *Notification) error
	Remove(ctx context.Context, key Key) (bool, error)
	RemoveByRelatedEntities(
		ctx context.Context,
		kind EntityKind,
		ids []string,
	) ([]string, error)
	RemoveBetween(
		ctx context.Context,
		a, b string,
		kinds []Kind,
	) ([]string, error)
	RemoveInvolving(ctx context.Context, userID string) ([]string, error)
	MarkAllSeen(ctx context.Context, receiverID string) (int64, error)
	List(
		ctx context.Context,
		receiverID string,
		cursor core.Cursor,
	) ([]Item, error)
	CountUnseen(ctx context.Context, receiverID string) (int, error)
	GetByID(ctx context.Context, id string) (*Notification, error)
	SoftDelete(ctx context.Context, id string) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx core.DBTX) Repository {
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO notifications
			(id, receiver_id, actor_id, kind, related_entity_kind, related_entity_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &n.CreatedAt, query,
		n.ID,
		n.ReceiverID,
		n.ActorID,
		n.Kind,
		n.RelatedEntityKind,
		n.RelatedEntityID,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	return nil
}

func (r *repository) Remove(ctx context.Context, key Key) (bool, error) {
	query := `
		UPDATE notifications
		SET deleted_at = NOW()
		WHERE receiver_id = $1
		  AND actor_id = $2
		  AND kind = $3
		  AND related_entity_kind IS NOT DISTINCT FROM $4
		  AND related_entity_id IS NOT DISTINCT FROM $5
		  AND deleted_at IS NULL`

	relKind, relID := relatedColumns(key.Related)

	result, err := r.db.ExecContext(ctx, query,
		key.ReceiverID,
		key.ActorID,
		key.Kind,
		relKind,
		relID,
	)
	if err != nil {
		return false, fmt.Errorf("remove notification: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove notification: %w", err)
	}

	return rows > 0, nil
}

func (r *repository) RemoveByRelatedEntities(
	ctx context.Context,
	kind EntityKind,
	ids []string,
) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		UPDATE notifications
		SET deleted_at = NOW()
		WHERE related_entity_kind = $1
		  AND related_entity_id = ANY($2::uuid[])
		  AND deleted_at IS NULL
		RETURNING receiver_id`

	var receivers []string
	if err := r.db.SelectContext(ctx, &receivers, query, kind, ids); err != nil {
		return nil, fmt.Errorf("remove notifications by related entity: %w", err)
	}

	return receivers, nil
}

func (r *repository) RemoveBetween(
	ctx context.Context,
	a, b string,
	kinds []Kind,
) ([]string, error) {
	query := `
		UPDATE notifications
		SET deleted_at = NOW()
		WHERE ((receiver_id = $1 AND actor_id = $2) OR (receiver_id = $2 AND actor_id = $1))
		  AND kind = ANY($3)
		  AND deleted_at IS NULL
		RETURNING receiver_id`

	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}

	var receivers []string
	if err := r.db.SelectContext(ctx, &receivers, query, a, b, names); err != nil {
		return nil, fmt.Errorf("remove notifications between users: %w", err)
	}

	return receivers, nil
}

func (r *repository) RemoveInvolving(
	ctx context.Context,
	userID string,
) ([]string, error) {
	query := `
		UPDATE notifications
		SET deleted_at = NOW()
		WHERE (actor_id = $1 OR receiver_id = $1)
		  AND deleted_at IS NULL
		RETURNING receiver_id`

	var receivers []string
	if err := r.db.SelectContext(ctx, &receivers, query, userID); err != nil {
		return nil, fmt.Errorf("remove notifications involving user: %w", err)
	}

	return receivers, nil
}

func (r *repository) MarkAllSeen(
	ctx context.Context,
	receiverID string,
) (int64, error) {
	query := `
		UPDATE notifications
		SET seen_at = NOW()
		WHERE receiver_id = $1 AND seen_at IS NULL AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, receiverID)
	if err != nil {
		return 0, fmt.Errorf("mark notifications seen: %w", err)
	}

	return result.RowsAffected()
}

func (r *repository) List(
	ctx context.Context,
	receiverID string,
	cursor core.Cursor,
) ([]Item, error) {
	query := `
		SELECT n.id, n.receiver_id, n.actor_id, n.kind,
		       n.related_entity_kind, n.related_entity_id,
		       n.seen_at, n.created_at, n.deleted_at,
		       u.id AS "actor.id",
		       u.username AS "actor.username",
		       u.name AS "actor.name",
		       pr.avatar_url AS "actor.avatar_url",
		       COALESCE(p.code, cp.code) AS post_code
		FROM notifications n
		JOIN users u ON u.id = n.actor_id AND u.deleted_at IS NULL
		LEFT JOIN profiles pr ON pr.user_id = u.id
		LEFT JOIN posts p
		       ON n.related_entity_kind = 'post' AND p.id = n.related_entity_id
		LEFT JOIN comments c
		       ON n.related_entity_kind = 'comment' AND c.id = n.related_entity_id
		LEFT JOIN posts cp ON cp.id = c.post_id
		WHERE n.receiver_id = $1
		  AND n.deleted_at IS NULL
		  AND ($2::timestamptz IS NULL OR (n.created_at, n.id) < ($2, $3::uuid))
		ORDER BY n.created_at DESC, n.id DESC
		LIMIT $4`

	var items []Item
	err := r.db.SelectContext(ctx, &items, query,
		receiverID,
		cursor.Before,
		cursor.BeforeIDArg(),
		cursor.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	return items, nil
}

func (r *repository) CountUnseen(
	ctx context.Context,
	receiverID string,
) (int, error) {
	query := `
		SELECT COUNT(*) FROM notifications n
		JOIN users u ON u.id = n.actor_id AND u.deleted_at IS NULL
		WHERE n.receiver_id = $1 AND n.seen_at IS NULL AND n.deleted_at IS NULL`

	var count int
	if err := r.db.GetContext(ctx, &count, query, receiverID); err != nil {
		return 0, fmt.Errorf("count unseen notifications: %w", err)
	}

	return count, nil
}

func (r *repository) GetByID(
	ctx context.Context,
	id string,
) (*Notification, error) {
	query := `
		SELECT id, receiver_id, actor_id, kind, related_entity_kind,
		       related_entity_id, seen_at, created_at, deleted_at
		FROM notifications
		WHERE id = $1 AND deleted_at IS NULL`

	var n Notification
	err := r.db.GetContext(ctx, &n, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get notification: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}

	return &n, nil
}

func (r *repository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE notifications SET deleted_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete notification: %w", core.ErrNotFound)
	}

	return nil
}

func relatedColumns(rel *Related) (*string, *string) {
	if rel == nil {
		return nil, nil
	}
	kind := string(rel.Kind)
	id := rel.ID
	return &kind, &id
}
