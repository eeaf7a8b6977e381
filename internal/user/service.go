// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rzkfyn/ujikom-app-be/internal/auth"
	"github.com/rzkfyn/ujikom-app-be/internal/core"
	"github.com/rzkfyn/ujikom-app-be/internal/storage"
)

// RelationshipReader exposes the social graph facts a profile view needs.
type RelationshipReader interface {
	Relationship(
		ctx context.Context,
		viewerID, targetID string,
	) (*Relationship, error)
	ConnectionCounts(
		ctx context.Context,
		userID string,
	) (followers, following int, err error)
}

// NotificationRetractor withdraws every notification an account sent or
// received, inside the transaction that deletes the account.
type NotificationRetractor interface {
	RemoveInvolving(ctx context.Context, tx core.DBTX, userID string) error
}

type Service struct {
	repo          Repository
	tx            core.Transactor
	relations     RelationshipReader
	notifications NotificationRetractor
	store         storage.ObjectStore
	maxImageBytes int64
}

func NewService(
	repo Repository,
	tx core.Transactor,
	relations RelationshipReader,
	notifications NotificationRetractor,
	store storage.ObjectStore,
	maxImageBytes int64,
) *Service {
	return &Service{
		repo:          repo,
		tx:            tx,
		relations:     relations,
		notifications: notifications,
		store:         store,
		maxImageBytes: maxImageBytes,
	}
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) Create(
	ctx context.Context,
	input auth.NewUser,
) (*auth.UserInfo, error) {
	user := &User{
		ID:           uuid.New().String(),
		Username:     strings.ToLower(input.Username),
		Email:        strings.ToLower(input.Email),
		PasswordHash: input.PasswordHash,
		Name:         input.Name,
		Role:         RoleUser,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx core.DBTX) error {
		return s.repo.WithTx(tx).Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) IncrementTokenVersion(
	ctx context.Context,
	userID string,
) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	tx core.DBTX,
	userID, passwordHash string,
) error {
	return s.bind(tx).UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) UpdateEmail(
	ctx context.Context,
	userID, email string,
) error {
	return s.repo.UpdateEmail(ctx, userID, strings.ToLower(email))
}

func (s *Service) MarkEmailVerified(
	ctx context.Context,
	tx core.DBTX,
	userID string,
) error {
	return s.bind(tx).MarkEmailVerified(ctx, userID)
}

// bind returns the repository on tx, or the pooled one when tx is nil.
func (s *Service) bind(tx core.DBTX) Repository {
	if tx == nil {
		return s.repo
	}
	return s.repo.WithTx(tx)
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateUser(
	ctx context.Context,
	id string,
	req UpdateUserRequest,
) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = *req.Name
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) UpdateUserRole(
	ctx context.Context,
	id, role string,
) (*User, error) {
	if role != RoleUser && role != RoleAdmin {
		return nil, fmt.Errorf(
			"update role: invalid role %q: %w",
			role,
			core.ErrInvalidInput,
		)
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Role = role

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.deleteAccount(ctx, id)
}

func (s *Service) deleteAccount(ctx context.Context, id string) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context, tx core.DBTX) error {
		if err := s.repo.WithTx(tx).SoftDelete(ctx, id); err != nil {
			return err
		}
		return s.notifications.RemoveInvolving(ctx, tx, id)
	})
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) GetMe(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}

	return s.repo.GetByID(ctx, userID)
}

func (s *Service) UpdateMe(
	ctx context.Context,
	userID string,
	req UpdateUserRequest,
) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("update me: %w", core.ErrUnauthorized)
	}

	return s.UpdateUser(ctx, userID, req)
}

func (s *Service) DeleteMe(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("delete me: %w", core.ErrUnauthorized)
	}

	return s.deleteAccount(ctx, userID)
}

func (s *Service) CanDeleteUser(
	ctx context.Context,
	requesterID, targetID string,
) error {
	if requesterID == targetID {
		return nil
	}

	requester, err := s.repo.GetByID(ctx, requesterID)
	if err != nil {
		return err
	}

	if !requester.IsAdmin() {
		return fmt.Errorf("delete user: %w", core.ErrForbidden)
	}

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	if target.IsAdmin() {
		return fmt.Errorf("cannot delete admin users: %w", core.ErrForbidden)
	}

	return nil
}

func (s *Service) UsernameAvailable(
	ctx context.Context,
	username string,
) (bool, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if !core.IsValidUsername(username) {
		return false, nil
	}

	exists, err := s.repo.ExistsByUsername(ctx, username)
	if err != nil {
		return false, err
	}

	return !exists, nil
}

// GetProfile builds the public profile of username as seen by viewerID,
// which may be empty for anonymous viewers. A user who blocked the viewer
// is reported as not found.
func (s *Service) GetProfile(
	ctx context.Context,
	viewerID, username string,
) (*ProfileResponse, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	var rel *Relationship
	if viewerID != "" && viewerID != user.ID {
		rel, err = s.relations.Relationship(ctx, viewerID, user.ID)
		if err != nil {
			return nil, err
		}
		if rel.IsBlockedBy {
			return nil, fmt.Errorf("get profile: %w", core.ErrNotFound)
		}
	}

	return s.buildProfile(ctx, user, rel, viewerID == user.ID)
}

func (s *Service) buildProfile(
	ctx context.Context,
	user *User,
	rel *Relationship,
	isSelf bool,
) (*ProfileResponse, error) {
	profile, err := s.repo.GetProfile(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	settings, err := s.repo.GetSettings(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	followers, following, err := s.relations.ConnectionCounts(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	presence, err := s.repo.GetPresence(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	resp := &ProfileResponse{
		ID:             user.ID,
		Username:       user.Username,
		Name:           user.Name,
		Bio:            profile.Bio,
		Location:       profile.Location,
		URL:            profile.URL,
		Gender:         profile.Gender,
		AvatarURL:      profile.AvatarURL,
		CoverURL:       profile.CoverURL,
		Visibility:     settings.Visibility,
		FollowersCount: followers,
		FollowingCount: following,
		Presence:       presence.Status,
		LastSeen:       presence.LastSeen,
		Relationship:   rel,
		IsSelf:         isSelf,
		JoinedAt:       user.CreatedAt,
	}

	if profile.DateOfBirth != nil {
		dob := profile.DateOfBirth.Format(time.DateOnly)
		resp.DateOfBirth = &dob
	}

	return resp, nil
}

func (s *Service) UpdateProfile(
	ctx context.Context,
	userID string,
	req UpdateProfileRequest,
) (*ProfileResponse, error) {
	var dob *time.Time
	if req.DateOfBirth != nil && *req.DateOfBirth != "" {
		parsed, err := time.Parse(time.DateOnly, *req.DateOfBirth)
		if err != nil {
			return nil, fmt.Errorf("update profile: date_of_birth: %w", core.ErrInvalidInput)
		}
		dob = &parsed
	}

	var user *User
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx core.DBTX) error {
		repo := s.repo.WithTx(tx)

		var err error
		user, err = repo.GetByID(ctx, userID)
		if err != nil {
			return err
		}

		if req.Name != nil {
			user.Name = *req.Name
			if err := repo.Update(ctx, user); err != nil {
				return err
			}
		}

		profile, err := repo.GetProfile(ctx, userID)
		if err != nil {
			return err
		}

		applyProfileChanges(profile, req, dob)

		return repo.UpdateProfile(ctx, profile)
	})
	if err != nil {
		return nil, err
	}

	return s.buildProfile(ctx, user, nil, true)
}

func applyProfileChanges(p *Profile, req UpdateProfileRequest, dob *time.Time) {
	if req.Bio != nil {
		p.Bio = *req.Bio
	}
	if req.Location != nil {
		p.Location = *req.Location
	}
	if req.URL != nil {
		p.URL = *req.URL
	}
	if req.Gender != nil {
		p.Gender = *req.Gender
	}
	if req.DateOfBirth != nil {
		p.DateOfBirth = dob
	}
}

// UpdateImage stores a new avatar or cover image and removes the object it
// replaces. Removing the old object is best-effort.
func (s *Service) UpdateImage(
	ctx context.Context,
	userID string,
	kind ImageKind,
	fh *multipart.FileHeader,
) (*ProfileResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	obj, err := storage.SaveFormFile(ctx, s.store, fh, storage.UploadRule{
		Prefix:       string(kind) + "s/" + userID,
		MaxBytes:     s.maxImageBytes,
		AllowedTypes: storage.ImageTypes,
	})
	if err != nil {
		return nil, err
	}

	previous, err := s.repo.SetImage(ctx, userID, kind, obj.Key, obj.URL)
	if err != nil {
		s.removeObject(ctx, obj.Key)
		return nil, err
	}

	if previous != nil && *previous != "" {
		s.removeObject(ctx, *previous)
	}

	return s.buildProfile(ctx, user, nil, true)
}

// RemoveImage clears the avatar or cover. The stored object is deleted
// best-effort once the profile no longer points at it.
func (s *Service) RemoveImage(
	ctx context.Context,
	userID string,
	kind ImageKind,
) (*ProfileResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	previous, err := s.repo.SetImage(ctx, userID, kind, "", "")
	if err != nil {
		return nil, err
	}

	if previous != nil && *previous != "" {
		s.removeObject(ctx, *previous)
	}

	return s.buildProfile(ctx, user, nil, true)
}

func (s *Service) removeObject(ctx context.Context, key string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		slog.WarnContext(ctx, "failed to remove stored object",
			"key", key,
			"error", err,
		)
	}
}

func (s *Service) GetSettings(
	ctx context.Context,
	userID string,
) (*AccountSetting, error) {
	return s.repo.GetSettings(ctx, userID)
}

func (s *Service) UpdateVisibility(
	ctx context.Context,
	userID, visibility string,
) (*AccountSetting, error) {
	if visibility != VisibilityPublic && visibility != VisibilityPrivate {
		return nil, fmt.Errorf(
			"update visibility: invalid visibility %q: %w",
			visibility,
			core.ErrInvalidInput,
		)
	}

	return s.repo.UpdateVisibility(ctx, userID, visibility)
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Name:          u.Name,
		PasswordHash:  u.PasswordHash,
		Role:          u.Role,
		TokenVersion:  u.TokenVersion,
		EmailVerified: u.IsEmailVerified(),
		CreatedAt:     u.CreatedAt,
	}
}

// IsImageError reports whether err came from validating an uploaded image.
func IsImageError(err error) bool {
	return errors.Is(err, storage.ErrTooLarge) ||
		errors.Is(err, storage.ErrUnsupportedType)
}

var _ auth.UserProvider = (*Service)(nil)
