// AngelaMos | 2026
// repository.go

package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rzkfyn/ujikom-app-be/internal/core"
	"github.com/rzkfyn/ujikom-app-be/internal/user"
)

type Repository interface {
	WithTx(tx core.DBTX) Repository
	FindTarget(ctx context.Context, username string) (*Target, error)
	GetTarget(ctx context.Context, id string) (*Target, error)
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
	InsertFollow(ctx context.Context, followerID, followeeID string) error
	DeleteFollow(ctx context.Context, followerID, followeeID string) (bool, error)
	HasRequest(ctx context.Context, requesterID, requestedID string) (bool, error)
	InsertRequest(ctx context.Context, requesterID, requestedID string) error
	DeleteRequest(ctx context.Context, requesterID, requestedID string) (bool, error)
	IsBlocking(ctx context.Context, blockerID, blockedID string) (bool, error)
	IsBlockedEither(ctx context.Context, a, b string) (bool, error)
	InsertBlock(ctx context.Context, blockerID, blockedID string) error
	DeleteBlock(ctx context.Context, blockerID, blockedID string) (bool, error)
	ListConnections(
		ctx context.Context,
		userID string,
		dir Direction,
	) ([]user.Summary, error)
	ListRequests(
		ctx context.Context,
		userID string,
		incoming bool,
	) ([]RequestItem, error)
	ListBlocked(ctx context.Context, blockerID string) ([]user.Summary, error)
	CountConnections(
		ctx context.Context,
		userID string,
	) (followers, following int, err error)
}

var (
	errAlreadyFollowing = core.Detail(core.ErrAlreadyExists, "already following this user")
	errAlreadyRequested = core.Detail(core.ErrAlreadyExists, "follow request already sent")
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

const targetQuery = `
	SELECT u.id, u.username, COALESCE(s.visibility, 'PUBLIC') AS visibility
	FROM users u
	LEFT JOIN account_settings s ON s.user_id = u.id
	WHERE u.deleted_at IS NULL AND `

func (r *repository) FindTarget(
	ctx context.Context,
	username string,
) (*Target, error) {
	return r.target(ctx, targetQuery+`LOWER(u.username) = LOWER($1)`, username)
}

func (r *repository) GetTarget(ctx context.Context, id string) (*Target, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	return r.target(ctx, targetQuery+`u.id = $1`, id)
}

func (r *repository) target(
	ctx context.Context,
	query string,
	arg string,
) (*Target, error) {
	var t Target
	err := r.db.GetContext(ctx, &t, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", core.Detail(core.ErrNotFound, "user not found"))
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &t, nil
}

func (r *repository) IsFollowing(
	ctx context.Context,
	followerID, followeeID string,
) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM follow_edges
			WHERE follower_id = $1 AND followee_id = $2 AND deleted_at IS NULL
		)`

	return r.exists(ctx, "check follow", query, followerID, followeeID)
}

func (r *repository) InsertFollow(
	ctx context.Context,
	followerID, followeeID string,
) error {
	query := `
		INSERT INTO follow_edges (id, follower_id, followee_id)
		VALUES ($1, $2, $3)`

	_, err := r.db.ExecContext(ctx, query, uuid.New().String(), followerID, followeeID)
	if err != nil {
		if core.IsUniqueViolation(err) {
			return fmt.Errorf("insert follow: %w", errAlreadyFollowing)
		}
		return fmt.Errorf("insert follow: %w", err)
	}

	return nil
}

func (r *repository) DeleteFollow(
	ctx context.Context,
	followerID, followeeID string,
) (bool, error) {
	query := `
		UPDATE follow_edges SET deleted_at = NOW()
		WHERE follower_id = $1 AND followee_id = $2 AND deleted_at IS NULL`

	return r.affected(ctx, "delete follow", query, followerID, followeeID)
}

func (r *repository) HasRequest(
	ctx context.Context,
	requesterID, requestedID string,
) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM follow_requests
			WHERE requester_id = $1 AND requested_id = $2
		)`

	return r.exists(ctx, "check follow request", query, requesterID, requestedID)
}

func (r *repository) InsertRequest(
	ctx context.Context,
	requesterID, requestedID string,
) error {
	query := `
		INSERT INTO follow_requests (id, requester_id, requested_id)
		VALUES ($1, $2, $3)`

	_, err := r.db.ExecContext(ctx, query, uuid.New().String(), requesterID, requestedID)
	if err != nil {
		if core.IsUniqueViolation(err) {
			return fmt.Errorf("insert follow request: %w", errAlreadyRequested)
		}
		return fmt.Errorf("insert follow request: %w", err)
	}

	return nil
}

func (r *repository) DeleteRequest(
	ctx context.Context,
	requesterID, requestedID string,
) (bool, error) {
	query := `
		DELETE FROM follow_requests
		WHERE requester_id = $1 AND requested_id = $2`

	return r.affected(ctx, "delete follow request", query, requesterID, requestedID)
}

func (r *repository) IsBlocking(
	ctx context.Context,
	blockerID, blockedID string,
) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM block_edges
			WHERE blocker_id = $1 AND blocked_id = $2 AND deleted_at IS NULL
		)`

	return r.exists(ctx, "check block", query, blockerID, blockedID)
}

func (r *repository) IsBlockedEither(
	ctx context.Context,
	a, b string,
) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM block_edges
			WHERE ((blocker_id = $1 AND blocked_id = $2)
			    OR (blocker_id = $2 AND blocked_id = $1))
			  AND deleted_at IS NULL
		)`

	return r.exists(ctx, "check block", query, a, b)
}

func (r *repository) InsertBlock(
	ctx context.Context,
	blockerID, blockedID string,
) error {
	query := `
		INSERT INTO block_edges (id, blocker_id, blocked_id)
		VALUES ($1, $2, $3)`

	_, err := r.db.ExecContext(ctx, query, uuid.New().String(), blockerID, blockedID)
	if err != nil {
		if core.IsUniqueViolation(err) {
			return fmt.Errorf("insert block: %w", core.ErrAlreadyBlocked)
		}
		return fmt.Errorf("insert block: %w", err)
	}

	return nil
}

func (r *repository) DeleteBlock(
	ctx context.Context,
	blockerID, blockedID string,
) (bool, error) {
	query := `
		UPDATE block_edges SET deleted_at = NOW()
		WHERE blocker_id = $1 AND blocked_id = $2 AND deleted_at IS NULL`

	return r.affected(ctx, "delete block", query, blockerID, blockedID)
}

func (r *repository) ListConnections(
	ctx context.Context,
	userID string,
	dir Direction,
) ([]user.Summary, error) {
	// followers are the users on the follower side of edges into userID
	join, where := "f.follower_id", "f.followee_id"
	if dir == DirectionFollowing {
		join, where = "f.followee_id", "f.follower_id"
	}

	query := `
		SELECT u.id, u.username, u.name, p.avatar_url
		FROM follow_edges f
		JOIN users u ON u.id = ` + join + `
		LEFT JOIN profiles p ON p.user_id = u.id
		WHERE ` + where + ` = $1
		  AND f.deleted_at IS NULL
		  AND u.deleted_at IS NULL
		ORDER BY f.created_at DESC`

	var users []user.Summary
	if err := r.db.SelectContext(ctx, &users, query, userID); err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	return users, nil
}

func (r *repository) ListRequests(
	ctx context.Context,
	userID string,
	incoming bool,
) ([]RequestItem, error) {
	join, where := "fr.requester_id", "fr.requested_id"
	if !incoming {
		join, where = "fr.requested_id", "fr.requester_id"
	}

	query := `
		SELECT u.id AS "user.id",
		       u.username AS "user.username",
		       u.name AS "user.name",
		       p.avatar_url AS "user.avatar_url",
		       fr.created_at
		FROM follow_requests fr
		JOIN users u ON u.id = ` + join + `
		LEFT JOIN profiles p ON p.user_id = u.id
		WHERE ` + where + ` = $1 AND u.deleted_at IS NULL
		ORDER BY fr.created_at DESC`

	var items []RequestItem
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("list follow requests: %w", err)
	}

	return items, nil
}

func (r *repository) ListBlocked(
	ctx context.Context,
	blockerID string,
) ([]user.Summary, error) {
	query := `
		SELECT u.id, u.username, u.name, p.avatar_url
		FROM block_edges b
		JOIN users u ON u.id = b.blocked_id
		LEFT JOIN profiles p ON p.user_id = u.id
		WHERE b.blocker_id = $1 AND b.deleted_at IS NULL AND u.deleted_at IS NULL
		ORDER BY b.created_at DESC`

	var users []user.Summary
	if err := r.db.SelectContext(ctx, &users, query, blockerID); err != nil {
		return nil, fmt.Errorf("list blocked: %w", err)
	}

	return users, nil
}

func (r *repository) CountConnections(
	ctx context.Context,
	userID string,
) (int, int, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM follow_edges f
			 JOIN users u ON u.id = f.follower_id
			 WHERE f.followee_id = $1 AND f.deleted_at IS NULL AND u.deleted_at IS NULL
			) AS followers,
			(SELECT COUNT(*) FROM follow_edges f
			 JOIN users u ON u.id = f.followee_id
			 WHERE f.follower_id = $1 AND f.deleted_at IS NULL AND u.deleted_at IS NULL
			) AS following`

	var counts struct {
		Followers int `db:"followers"`
		Following int `db:"following"`
	}
	if err := r.db.GetContext(ctx, &counts, query, userID); err != nil {
		return 0, 0, fmt.Errorf("count connections: %w", err)
	}

	return counts.Followers, counts.Following, nil
}

func (r *repository) exists(
	ctx context.Context,
	op, query string,
	args ...any,
) (bool, error) {
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, args...); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
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
