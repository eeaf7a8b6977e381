// AngelaMos | 2026
// repository.go

package post

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
	Insert(ctx context.Context, p *Post) (bool, error)
	InsertMedia(ctx context.Context, media []Media) error
	GetByCode(ctx context.Context, code string) (*Post, error)
	GetItem(ctx context.Context, viewerID, code string) (*Item, error)
	GetItemByID(ctx context.Context, viewerID, id string) (*Item, error)
	List(ctx context.Context, q ListQuery) ([]Item, error)
	MediaFor(ctx context.Context, postIDs []string) ([]Media, error)
	SoftDelete(ctx context.Context, id string) error
	Purge(ctx context.Context, postID string) (*Purged, error)
	InsertLike(ctx context.Context, postID, userID string) (bool, error)
	DeleteLike(ctx context.Context, postID, userID string) (bool, error)
	InsertSave(ctx context.Context, postID, userID string) (bool, error)
	DeleteSave(ctx context.Context, postID, userID string) (bool, error)
	FindUserID(ctx context.Context, username string) (string, error)
	ResolveUsernames(ctx context.Context, usernames []string) ([]string, error)
	InsertMentions(
		ctx context.Context,
		entityKind, entityID string,
		userIDs []string,
	) error
}

var (
	ErrPostNotFound = core.Detail(core.ErrNotFound, "post not found")
	errUserNotFound = core.Detail(core.ErrNotFound, "user not found")
)

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx core.DBTX) Repository {
	return &repository{db: tx}
}

// Insert returns false when the code is already taken.
func (r *repository) Insert(ctx context.Context, p *Post) (bool, error) {
	query := `
		INSERT INTO posts (id, code, author_id, text, shared_post_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO NOTHING
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		p.ID,
		p.Code,
		p.AuthorID,
		p.Text,
		p.SharedPostID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert post: %w", err)
	}

	return true, nil
}

func (r *repository) InsertMedia(ctx context.Context, media []Media) error {
	query := `
		INSERT INTO post_media
			(id, post_id, object_key, url, content_type, size_bytes, position)
		VALUES (:id, :post_id, :object_key, :url, :content_type, :size_bytes, :position)`

	for _, m := range media {
		if _, err := sqlx.NamedExecContext(ctx, r.db, query, m); err != nil {
			return fmt.Errorf("insert post media: %w", err)
		}
	}

	return nil
}

func (r *repository) GetByCode(ctx context.Context, code string) (*Post, error) {
	query := `
		SELECT id, code, author_id, text, shared_post_id,
		       created_at, updated_at, deleted_at
		FROM posts
		WHERE code = $1 AND deleted_at IS NULL`

	var p Post
	err := r.db.GetContext(ctx, &p, query, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get post: %w", ErrPostNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}

	return &p, nil
}

// itemQuery selects posts with the viewer ($1, possibly NULL) applied: the
// viewer's own like and save state, and only posts the viewer may see.
const itemQuery = `
	SELECT p.id, p.code, p.author_id, p.text, p.shared_post_id,
	       p.created_at, p.updated_at, p.deleted_at,
	       u.id AS "author.id",
	       u.username AS "author.username",
	       u.name AS "author.name",
	       pr.avatar_url AS "author.avatar_url",
	       sp.code AS shared_code,
	       (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id) AS like_count,
	       (SELECT COUNT(*) FROM comments c
	         WHERE c.post_id = p.id AND c.deleted_at IS NULL) AS comment_count,
	       (SELECT COUNT(*) FROM posts s
	         WHERE s.shared_post_id = p.id AND s.deleted_at IS NULL) AS share_count,
	       EXISTS (SELECT 1 FROM post_likes l
	         WHERE l.post_id = p.id AND l.user_id = $1::uuid) AS liked,
	       EXISTS (SELECT 1 FROM post_saves v
	         WHERE v.post_id = p.id AND v.user_id = $1::uuid) AS saved
	FROM posts p
	JOIN users u ON u.id = p.author_id AND u.deleted_at IS NULL
	LEFT JOIN profiles pr ON pr.user_id = u.id
	LEFT JOIN account_settings st ON st.user_id = u.id
	LEFT JOIN posts sp ON sp.id = p.shared_post_id AND sp.deleted_at IS NULL
	WHERE p.deleted_at IS NULL
	  AND (
	    p.author_id = $1::uuid
	    OR (
	      NOT EXISTS (
	        SELECT 1 FROM block_edges b
	        WHERE b.deleted_at IS NULL
	          AND ((b.blocker_id = p.author_id AND b.blocked_id = $1::uuid)
	            OR (b.blocker_id = $1::uuid AND b.blocked_id = p.author_id))
	      )
	      AND (
	        COALESCE(st.visibility, 'PUBLIC') = 'PUBLIC'
	        OR EXISTS (
	          SELECT 1 FROM follow_edges f
	          WHERE f.deleted_at IS NULL
	            AND f.follower_id = $1::uuid AND f.followee_id = p.author_id
	        )
	      )
	    )
	  )`

func (r *repository) GetItem(
	ctx context.Context,
	viewerID, code string,
) (*Item, error) {
	return r.item(ctx, itemQuery+` AND p.code = $2`, viewerID, code)
}

func (r *repository) GetItemByID(
	ctx context.Context,
	viewerID, id string,
) (*Item, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get post: %w", ErrPostNotFound)
	}
	return r.item(ctx, itemQuery+` AND p.id = $2`, viewerID, id)
}

func (r *repository) item(
	ctx context.Context,
	query, viewerID, key string,
) (*Item, error) {
	var it Item
	err := r.db.GetContext(ctx, &it, query, nullID(viewerID), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get post: %w", ErrPostNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}

	return &it, nil
}

func (r *repository) List(ctx context.Context, q ListQuery) ([]Item, error) {
	args := []any{
		nullID(q.ViewerID),
		q.Cursor.Before,
		q.Cursor.BeforeIDArg(),
		q.Cursor.Limit,
	}

	query := itemQuery + `
	  AND ($2::timestamptz IS NULL OR (p.created_at, p.id) < ($2, $3::uuid))`

	switch q.Scope {
	case ScopeFeed:
		query += `
	  AND (p.author_id = $1::uuid OR EXISTS (
	    SELECT 1 FROM follow_edges f
	    WHERE f.deleted_at IS NULL
	      AND f.follower_id = $1::uuid AND f.followee_id = p.author_id
	  ))`
	case ScopeAuthor:
		query += `
	  AND p.author_id = $5`
		args = append(args, q.AuthorID)
	case ScopeSaved:
		query += `
	  AND EXISTS (SELECT 1 FROM post_saves v
	    WHERE v.post_id = p.id AND v.user_id = $1::uuid)`
	}

	query += `
	ORDER BY p.created_at DESC, p.id DESC
	LIMIT $4`

	var items []Item
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	return items, nil
}

func (r *repository) MediaFor(
	ctx context.Context,
	postIDs []string,
) ([]Media, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, post_id, object_key, url, content_type, size_bytes, position
		FROM post_media
		WHERE post_id = ANY($1::uuid[])
		ORDER BY post_id, position`

	var media []Media
	if err := r.db.SelectContext(ctx, &media, query, postIDs); err != nil {
		return nil, fmt.Errorf("list post media: %w", err)
	}

	return media, nil
}

func (r *repository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE posts SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete post: %w", ErrPostNotFound)
	}

	return nil
}

// Purge removes what hangs off a deleted post: comments are soft deleted,
// likes, saves, mentions and media rows are removed outright. MediaKeys
// covers the media of the post and of its comments.
func (r *repository) Purge(ctx context.Context, postID string) (*Purged, error) {
	var purged Purged

	err := r.db.SelectContext(ctx, &purged.CommentIDs, `
		UPDATE comments SET deleted_at = NOW()
		WHERE post_id = $1 AND deleted_at IS NULL
		RETURNING id`, postID)
	if err != nil {
		return nil, fmt.Errorf("purge comments: %w", err)
	}

	if len(purged.CommentIDs) > 0 {
		if _, err := r.db.ExecContext(ctx, `
			DELETE FROM comment_likes WHERE comment_id = ANY($1::uuid[])`,
			purged.CommentIDs); err != nil {
			return nil, fmt.Errorf("purge comment likes: %w", err)
		}

		if _, err := r.db.ExecContext(ctx, `
			DELETE FROM mentions
			WHERE entity_kind = 'comment' AND entity_id = ANY($1::uuid[])`,
			purged.CommentIDs); err != nil {
			return nil, fmt.Errorf("purge comment mentions: %w", err)
		}

		if err := r.db.SelectContext(ctx, &purged.MediaKeys, `
			DELETE FROM comment_media WHERE comment_id = ANY($1::uuid[])
			RETURNING object_key`, purged.CommentIDs); err != nil {
			return nil, fmt.Errorf("purge comment media: %w", err)
		}
	}

	for _, stmt := range []struct{ op, query string }{
		{"purge likes", `DELETE FROM post_likes WHERE post_id = $1`},
		{"purge saves", `DELETE FROM post_saves WHERE post_id = $1`},
		{"purge mentions", `DELETE FROM mentions WHERE entity_kind = 'post' AND entity_id = $1`},
	} {
		if _, err := r.db.ExecContext(ctx, stmt.query, postID); err != nil {
			return nil, fmt.Errorf("%s: %w", stmt.op, err)
		}
	}

	var postKeys []string
	err = r.db.SelectContext(ctx, &postKeys, `
		DELETE FROM post_media WHERE post_id = $1
		RETURNING object_key`, postID)
	if err != nil {
		return nil, fmt.Errorf("purge media: %w", err)
	}
	purged.MediaKeys = append(purged.MediaKeys, postKeys...)

	return &purged, nil
}

func (r *repository) InsertLike(ctx context.Context, postID, userID string) (bool, error) {
	return r.affected(ctx, "like post", `
		INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, postID, userID)
}

func (r *repository) DeleteLike(ctx context.Context, postID, userID string) (bool, error) {
	return r.affected(ctx, "unlike post", `
		DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
}

func (r *repository) InsertSave(ctx context.Context, postID, userID string) (bool, error) {
	return r.affected(ctx, "save post", `
		INSERT INTO post_saves (post_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, postID, userID)
}

func (r *repository) DeleteSave(ctx context.Context, postID, userID string) (bool, error) {
	return r.affected(ctx, "unsave post", `
		DELETE FROM post_saves WHERE post_id = $1 AND user_id = $2`, postID, userID)
}

func (r *repository) FindUserID(ctx context.Context, username string) (string, error) {
	query := `
		SELECT id FROM users
		WHERE LOWER(username) = LOWER($1) AND deleted_at IS NULL`

	var id string
	err := r.db.GetContext(ctx, &id, query, username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("find user: %w", errUserNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("find user: %w", err)
	}

	return id, nil
}

func (r *repository) ResolveUsernames(
	ctx context.Context,
	usernames []string,
) ([]string, error) {
	if len(usernames) == 0 {
		return nil, nil
	}

	query := `
		SELECT id FROM users
		WHERE LOWER(username) = ANY($1) AND deleted_at IS NULL`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, usernames); err != nil {
		return nil, fmt.Errorf("resolve mentions: %w", err)
	}

	return ids, nil
}

func (r *repository) InsertMentions(
	ctx context.Context,
	entityKind, entityID string,
	userIDs []string,
) error {
	query := `
		INSERT INTO mentions (id, entity_kind, entity_id, mentioned_user_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`

	for _, userID := range userIDs {
		if _, err := r.db.ExecContext(ctx, query,
			uuid.New().String(), entityKind, entityID, userID); err != nil {
			return fmt.Errorf("insert mention: %w", err)
		}
	}

	return nil
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
