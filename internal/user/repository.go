// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rzkfyn/ujikom-app-be/internal/core"
)

type Repository interface {
	WithTx(tx core.DBTX) Repository
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateEmail(ctx context.Context, id, email string) error
	MarkEmailVerified(ctx context.Context, id string) error
	IncrementTokenVersion(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context, params ListUsersParams) ([]User, int, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpdateProfile(ctx context.Context, profile *Profile) error
	SetImage(
		ctx context.Context,
		userID string,
		kind ImageKind,
		key, url string,
	) (previousKey *string, err error)
	GetSettings(ctx context.Context, userID string) (*AccountSetting, error)
	UpdateVisibility(
		ctx context.Context,
		userID, visibility string,
	) (*AccountSetting, error)
	GetPresence(ctx context.Context, userID string) (*Presence, error)
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

const userColumns = `id, username, email, password_hash, name, role, token_version,
		       email_verified_at, created_at, updated_at, deleted_at`

// Create inserts the user together with an empty profile and a PUBLIC
// account setting. Run it inside a transaction.
func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, name, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at, token_version`

	err := r.db.GetContext(ctx, user, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Role,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", mapDuplicate(err))
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id) VALUES ($1)`, user.ID); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO account_settings (user_id, visibility) VALUES ($1, $2)`,
		user.ID, VisibilityPublic); err != nil {
		return fmt.Errorf("create account setting: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND deleted_at IS NULL`

	var user User
	err := r.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(email) = LOWER($1) AND deleted_at IS NULL`

	var user User
	err := r.db.GetContext(ctx, &user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return &user, nil
}

func (r *repository) GetByUsername(
	ctx context.Context,
	username string,
) (*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(username) = LOWER($1) AND deleted_at IS NULL`

	var user User
	err := r.db.GetContext(ctx, &user, query, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user by username: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}

	return &user, nil
}

func (r *repository) Update(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET name = $2, role = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &user.UpdatedAt, query,
		user.ID,
		user.Name,
		user.Role,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	return nil
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "update password", query, id, passwordHash)
}

func (r *repository) UpdateEmail(ctx context.Context, id, email string) error {
	query := `
		UPDATE users
		SET email = $2, email_verified_at = NULL, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, email)
	if err != nil {
		return fmt.Errorf("update email: %w", mapDuplicate(err))
	}

	return requireRow("update email", result)
}

func (r *repository) MarkEmailVerified(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET email_verified_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "mark email verified", query, id)
}

func (r *repository) IncrementTokenVersion(
	ctx context.Context,
	id string,
) error {
	query := `
		UPDATE users
		SET token_version = token_version + 1, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "increment token version", query, id)
}

func (r *repository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "delete user", query, id)
}

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, "deleted_at IS NULL")

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(email ILIKE $%d OR name ILIKE $%d OR username ILIKE $%d)",
			argIdx, argIdx, argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argIdx))
		args = append(args, params.Role)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM users WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, username, email, name, role, token_version,
		       email_verified_at, created_at, updated_at, deleted_at
		FROM users
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var users []User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return users, total, nil
}

func (r *repository) ExistsByEmail(
	ctx context.Context,
	email string,
) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1) AND deleted_at IS NULL)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email); err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}

	return exists, nil
}

func (r *repository) ExistsByUsername(
	ctx context.Context,
	username string,
) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($1) AND deleted_at IS NULL)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, username); err != nil {
		return false, fmt.Errorf("check username exists: %w", err)
	}

	return exists, nil
}

func (r *repository) GetProfile(
	ctx context.Context,
	userID string,
) (*Profile, error) {
	query := `
		SELECT user_id, bio, location, url, gender, date_of_birth,
		       avatar_key, avatar_url, cover_key, cover_url, updated_at
		FROM profiles
		WHERE user_id = $1`

	var profile Profile
	err := r.db.GetContext(ctx, &profile, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get profile: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return &profile, nil
}

func (r *repository) UpdateProfile(ctx context.Context, profile *Profile) error {
	query := `
		UPDATE profiles
		SET bio = $2, location = $3, url = $4, gender = $5,
		    date_of_birth = $6, updated_at = NOW()
		WHERE user_id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &profile.UpdatedAt, query,
		profile.UserID,
		profile.Bio,
		profile.Location,
		profile.URL,
		profile.Gender,
		profile.DateOfBirth,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update profile: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	return nil
}

func (r *repository) SetImage(
	ctx context.Context,
	userID string,
	kind ImageKind,
	key, url string,
) (*string, error) {
	var query string
	switch kind {
	case ImageAvatar:
		query = `
		UPDATE profiles p
		SET avatar_key = NULLIF($2, ''), avatar_url = NULLIF($3, ''), updated_at = NOW()
		FROM profiles old
		WHERE p.user_id = $1 AND old.user_id = p.user_id
		RETURNING old.avatar_key`
	case ImageCover:
		query = `
		UPDATE profiles p
		SET cover_key = NULLIF($2, ''), cover_url = NULLIF($3, ''), updated_at = NOW()
		FROM profiles old
		WHERE p.user_id = $1 AND old.user_id = p.user_id
		RETURNING old.cover_key`
	default:
		return nil, fmt.Errorf("set image: unknown kind %q: %w", kind, core.ErrInvalidInput)
	}

	var previous *string
	err := r.db.GetContext(ctx, &previous, query, userID, key, url)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("set %s: %w", kind, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("set %s: %w", kind, err)
	}

	return previous, nil
}

func (r *repository) GetSettings(
	ctx context.Context,
	userID string,
) (*AccountSetting, error) {
	query := `
		SELECT user_id, visibility, updated_at
		FROM account_settings
		WHERE user_id = $1`

	var setting AccountSetting
	err := r.db.GetContext(ctx, &setting, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get settings: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	return &setting, nil
}

func (r *repository) UpdateVisibility(
	ctx context.Context,
	userID, visibility string,
) (*AccountSetting, error) {
	query := `
		UPDATE account_settings
		SET visibility = $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING user_id, visibility, updated_at`

	var setting AccountSetting
	err := r.db.GetContext(ctx, &setting, query, userID, visibility)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update visibility: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update visibility: %w", err)
	}

	return &setting, nil
}

func (r *repository) GetPresence(
	ctx context.Context,
	userID string,
) (*Presence, error) {
	query := `SELECT status, last_seen FROM presences WHERE user_id = $1`

	var presence Presence
	err := r.db.GetContext(ctx, &presence, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return &Presence{Status: "OFFLINE"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get presence: %w", err)
	}

	return &presence, nil
}

func (r *repository) execOne(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return requireRow(op, result)
}

func requireRow(op string, result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}

func mapDuplicate(err error) error {
	constraint, ok := core.UniqueViolation(err)
	if !ok {
		return err
	}

	switch constraint {
	case "users_username_active_key":
		return &core.DuplicateKeyError{Field: "username"}
	case "users_email_active_key":
		return &core.DuplicateKeyError{Field: "email"}
	}
	return core.ErrDuplicateKey
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
