// AngelaMos | 2026
// repository.go

package comment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rzkfyn/ujikom-app-be/internal/core"
)

type Repository interface {
	WithTx(tx core.DBTX) Repository
	Insert(ctx context.Context, c *Comment) error
	InsertMedia(ctx context.Context, media []Media) error
	MediaFor(ctx context.Context, commentIDs []string) ([]Media, error)
	Get(ctx context.Context, id string) (*Target, error)
	GetItem(ctx context.Context, viewerID, id string) (*Item, error)
	List(ctx context.Context, q ListQuery) ([]Item, error)
	SoftDelete(ctx context.Context, id string) error
	Purge(ctx context.Context, id string) ([]string, error)
	InsertLike(ctx context.Context, commentID, userID string) (bool, error)
	DeleteLike(ctx context.Context, commentID, userID string) (bool, error)
}

var ErrCommentNotFound = core.Detail(core.ErrNotFound, "comment not found")

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx core.DBTX) Repository {
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, c *Comment) error {
	query := `
		INSERT INTO comments (id, post_id, author_id, replied_comment_id, text)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRowxContext(ctx, query,
		c.ID,
		c.PostID,
		c.AuthorID,
		c.RepliedCommentID,
		c.Text,
	).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}

	return nil
}

func (r *repository) InsertMedia(ctx context.Context, media []Media) error {
	query := `
		INSERT INTO comment_media
			(id, comment_id, object_key, url, content_type, size_bytes, position)
		VALUES (:id, :comment_id, :object_key, :url, :content_type, :size_bytes, :position)`

	for _, m := range media {
		if _, err := sqlx.NamedExecContext(ctx, r.db, query, m); err != nil {
			return fmt.Errorf("insert comment media: %w", err)
		}
	}

	return nil
}

func (r *repository) MediaFor(
	ctx context.Context,
	commentIDs []string,
) ([]Media, error) {
	if len(commentIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, comment_id, object_key, url, content_type, size_bytes, position
		FROM comment_media
		WHERE comment_id = ANY($1::uuid[])
		ORDER BY comment_id, position`

	var media []Media
	if err := r.db.SelectContext(ctx, &media, query, commentIDs); err != nil {
		return nil, fmt.Errorf("list comment media: %w", err)
	}

	return media, nil
}

// Get returns a live comment on a live post.
func (r *repository) Get(ctx context.Context, id string) (*Target, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get comment: %w", ErrCommentNotFound)
	}

	query := `
		SELECT c.id, c.post_id, c.author_id, c.replied_comment_id, c.text,
		       c.created_at, c.deleted_at,
		       p.code AS post_code, p.author_id AS post_author_id
		FROM comments c
		JOIN posts p ON p.id = c.post_id AND p.deleted_at IS NULL
		WHERE c.id = $1 AND c.deleted_at IS NULL`

	var t Target
	err := r.db.GetContext(ctx, &t, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get comment: %w", ErrCommentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}

	return &t, nil
}

const itemQuery = `
	SELECT c.id, c.post_id, c.author_id, c.replied_comment_id, c.text,
	       c.created_at, c.deleted_at,
	       u.id AS "author.id",
	       u.username AS "author.username",
	       u.name AS "author.name",
	       pr.avatar_url AS "author.avatar_url",
	       (SELECT COUNT(*) FROM comment_likes l WHERE l.comment_id = c.id) AS like_count,
	       EXISTS (SELECT 1 FROM comment_likes l
	         WHERE l.comment_id = c.id AND l.user_id = $1::uuid) AS liked
	FROM comments c
	JOIN users u ON u.id = c.author_id AND u.deleted_at IS NULL
	LEFT JOIN profiles pr ON pr.user_id = u.id
	WHERE c.deleted_at IS NULL`

func (r *repository) GetItem(
	ctx context.Context,
	viewerID, id string,
) (*Item, error) {
	var it Item
	err := r.db.GetContext(ctx, &it, itemQuery+` AND c.id = $2`, nullID(viewerID), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get comment: %w", ErrCommentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}

	return &it, nil
}

// List pages a post's comments newest first. Comments by users in a block
// relation with the viewer are left out.
func (r *repository) List(ctx context.Context, q ListQuery) ([]Item, error) {
	query := itemQuery + `
	  AND c.post_id = $2
	  AND ($3::timestamptz IS NULL OR (c.created_at, c.id) < ($3, $4::uuid))
	  AND NOT EXISTS (
	    SELECT 1 FROM block_edges b
	    WHERE b.deleted_at IS NULL
	      AND ((b.blocker_id = c.author_id AND b.blocked_id = $1::uuid)
	        OR (b.blocker_id = $1::uuid AND b.blocked_id = c.author_id))
	  )
	ORDER BY c.created_at DESC, c.id DESC
	LIMIT $5`

	var items []Item
	err := r.db.SelectContext(ctx, &items, query,
		nullID(q.ViewerID),
		q.PostID,
		q.Cursor.Before,
		q.Cursor.BeforeIDArg(),
		q.Cursor.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	return items, nil
}

func (r *repository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE comments SET deleted_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete comment: %w", ErrCommentNotFound)
	}

	return nil
}

// Purge removes the likes, mentions and media rows of a deleted comment and
// returns the object keys the media rows pointed at.
func (r *repository) Purge(ctx context.Context, id string) ([]string, error) {
	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM comment_likes WHERE comment_id = $1`, id); err != nil {
		return nil, fmt.Errorf("purge comment likes: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM mentions WHERE entity_kind = 'comment' AND entity_id = $1`, id); err != nil {
		return nil, fmt.Errorf("purge comment mentions: %w", err)
	}

	var keys []string
	err := r.db.SelectContext(ctx, &keys, `
		DELETE FROM comment_media WHERE comment_id = $1
		RETURNING object_key`, id)
	if err != nil {
		return nil, fmt.Errorf("purge comment media: %w", err)
	}

	return keys, nil
}

func (r *repository) InsertLike(ctx context.Context, commentID, userID string) (bool, error) {
	return r.affected(ctx, "like comment", `
		INSERT INTO comment_likes (comment_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, commentID, userID)
}

func (r *repository) DeleteLike(ctx context.Context, commentID, userID string) (bool, error) {
	return r.affected(ctx, "unlike comment", `
		DELETE FROM comment_likes WHERE comment_id = $1 AND user_id = $2`, commentID, userID)
}

func (r *repository) affected(
	ctx context.Context,
	op, query string,
	args ...any,
) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return rows > 0, nil
}

func nullID(id string) any {
	if id == "" {
		return nil
	}
	return id
}
