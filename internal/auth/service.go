// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rzkfyn/ujikom-app-be/internal/config"
	"github.com/rzkfyn/ujikom-app-be/internal/core"
	"github.com/rzkfyn/ujikom-app-be/internal/mail"
	"github.com/rzkfyn/ujikom-app-be/internal/middleware"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenReuse         = errors.New("token reuse detected")
	ErrInvalidCode        = errors.New("invalid code")
	ErrCodeExpired        = errors.New("code expired")
	ErrAlreadyVerified    = errors.New("email already verified")
)

const codeLength = 6

type UserInfo struct {
	ID            string
	Username      string
	Email         string
	Name          string
	PasswordHash  string
	Role          string
	TokenVersion  int
	EmailVerified bool
	CreatedAt     time.Time
}

type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	Name         string
}

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Create(ctx context.Context, input NewUser) (*UserInfo, error)
	IncrementTokenVersion(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, tx core.DBTX, userID, passwordHash string) error
	UpdateEmail(ctx context.Context, userID, email string) error
	MarkEmailVerified(ctx context.Context, tx core.DBTX, userID string) error
}

type Service struct {
	repo         Repository
	tx           core.Transactor
	jwt          *JWTManager
	userProvider UserProvider
	redis        *redis.Client
	mailer       mail.Sender
	identity     config.IdentityConfig
}

func NewService(
	repo Repository,
	tx core.Transactor,
	jwt *JWTManager,
	userProvider UserProvider,
	redisClient *redis.Client,
	mailer mail.Sender,
	identity config.IdentityConfig,
) *Service {
	return &Service{
		repo:         repo,
		tx:           tx,
		jwt:          jwt,
		userProvider: userProvider,
		redis:        redisClient,
		mailer:       mailer,
		identity:     identity,
	}
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	user, err := s.userProvider.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention - always verify to prevent enumeration
			_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(
		req.Password,
		&user.PasswordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return nil, ErrInvalidCredentials
	}

	if newHash != "" {
		//nolint:errcheck // best-effort rehash upgrade
		_ = s.userProvider.UpdatePassword(ctx, nil, user.ID, newHash)
	}

	return s.createAuthResponse(ctx, user, userAgent, ipAddress, "", nil)
}

// Register creates the account, mails a verification code and signs the
// new user in. Mail delivery failures do not fail the registration.
func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.userProvider.Create(ctx, NewUser{
		Username:     strings.ToLower(req.Username),
		Email:        req.Email,
		PasswordHash: passwordHash,
		Name:         req.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.sendVerificationCode(ctx, user); err != nil {
		slog.WarnContext(ctx, "failed to send verification code",
			"user_id", user.ID,
			"error", err,
		)
	}

	return s.createAuthResponse(ctx, user, userAgent, ipAddress, "", nil)
}

func (s *Service) Refresh(
	ctx context.Context,
	refreshToken, userAgent, ipAddress string,
) (*AuthResponse, error) {
	tokenHash := core.HashToken(refreshToken)

	storedToken, err := s.repo.FindByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("find token: %w", err)
	}

	if storedToken.IsUsed {
		//nolint:errcheck // security revocation continues regardless
		_ = s.repo.RevokeByFamilyID(ctx, storedToken.FamilyID)
		return nil, ErrTokenReuse
	}

	if !storedToken.IsValid() {
		if storedToken.IsRevoked() {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
		}
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenExpired)
	}

	user, err := s.userProvider.GetByID(ctx, storedToken.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return s.createAuthResponse(
		ctx,
		user,
		userAgent,
		ipAddress,
		storedToken.FamilyID,
		&storedToken.ID,
	)
}

// Logout revokes the refresh token and blacklists the access token that
// made the request until it would have expired anyway.
func (s *Service) Logout(
	ctx context.Context,
	refreshToken string,
	claims *middleware.AccessTokenClaims,
) error {
	if claims != nil && claims.ID != "" {
		if err := s.RevokeAccessToken(ctx, claims.ID, claims.ExpiresAt); err != nil {
			slog.WarnContext(ctx, "failed to blacklist access token", "error", err)
		}
	}

	if refreshToken == "" {
		return nil
	}

	tokenHash := core.HashToken(refreshToken)

	storedToken, err := s.repo.FindByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find token: %w", err)
	}

	if claims == nil || storedToken.UserID != claims.UserID {
		return fmt.Errorf("logout: %w", core.ErrForbidden)
	}

	if err := s.repo.RevokeByID(ctx, storedToken.ID); err != nil &&
		!errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("revoke token: %w", err)
	}

	return nil
}

func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if err := s.repo.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}

	if err := s.userProvider.IncrementTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}

	return nil
}

func (s *Service) RevokeAccessToken(
	ctx context.Context,
	jti string,
	expiresAt time.Time,
) error {
	key := "blacklist:" + jti
	ttl := time.Until(expiresAt)

	if ttl <= 0 {
		return nil
	}

	if err := s.redis.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}

	return nil
}

func (s *Service) IsAccessTokenBlacklisted(
	ctx context.Context,
	jti string,
) (bool, error) {
	key := "blacklist:" + jti

	exists, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}

	return exists > 0, nil
}

// VerifyAccessToken checks the signature and then rejects tokens that were
// blacklisted on logout or issued before the user's last logout-all.
func (s *Service) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	claims, err := s.jwt.VerifyAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}

	blacklisted, err := s.IsAccessTokenBlacklisted(ctx, claims.ID)
	if err != nil {
		slog.WarnContext(ctx, "blacklist lookup failed", "error", err)
	} else if blacklisted {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
	}

	if err := s.ValidateTokenVersion(ctx, claims.UserID, claims.TokenVersion); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
		}
		return nil, err
	}

	return claims, nil
}

func (s *Service) GetActiveSessions(
	ctx context.Context,
	userID string,
) ([]SessionInfo, error) {
	tokens, err := s.repo.GetActiveSessionsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, SessionInfo{
			ID:        t.ID,
			UserAgent: t.UserAgent,
			IPAddress: t.IPAddress,
			CreatedAt: t.CreatedAt,
			ExpiresAt: t.ExpiresAt,
		})
	}

	return sessions, nil
}

func (s *Service) RevokeSession(
	ctx context.Context,
	userID, sessionID string,
) error {
	token, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}

	if token.UserID != userID {
		return fmt.Errorf("revoke session: %w", core.ErrForbidden)
	}

	if err := s.repo.RevokeByID(ctx, sessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

func (s *Service) ChangePassword(
	ctx context.Context,
	userID, currentPassword, newPassword string,
) error {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if err := s.checkPassword(currentPassword, user); err != nil {
		return err
	}

	newHash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.userProvider.UpdatePassword(ctx, nil, userID, newHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return s.endSessions(ctx, userID)
}

// ChangeEmail moves the account to a new address. The new address starts
// unverified and receives a fresh verification code.
func (s *Service) ChangeEmail(
	ctx context.Context,
	userID, newEmail, password string,
) error {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if err := s.checkPassword(password, user); err != nil {
		return err
	}

	if strings.EqualFold(user.Email, newEmail) {
		return fmt.Errorf("change email: %w",
			core.Detail(core.ErrInvalidInput, "new email must differ from the current one"))
	}

	if err := s.userProvider.UpdateEmail(ctx, userID, newEmail); err != nil {
		return fmt.Errorf("change email: %w", err)
	}

	user.Email = strings.ToLower(newEmail)
	user.EmailVerified = false

	if err := s.sendVerificationCode(ctx, user); err != nil {
		slog.WarnContext(ctx, "failed to send verification code",
			"user_id", user.ID,
			"error", err,
		)
	}

	return nil
}

func (s *Service) VerifyEmail(ctx context.Context, userID, code string) error {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if user.EmailVerified {
		return ErrAlreadyVerified
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context, tx core.DBTX) error {
		err := s.consumeCode(ctx, s.bind(tx), userID, CodePurposeEmailVerification, code)
		if err != nil {
			return err
		}

		if err := s.userProvider.MarkEmailVerified(ctx, tx, userID); err != nil {
			return fmt.Errorf("mark email verified: %w", err)
		}
		return nil
	})
}

func (s *Service) ResendVerificationCode(ctx context.Context, userID string) error {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if user.EmailVerified {
		return ErrAlreadyVerified
	}

	return s.sendVerificationCode(ctx, user)
}

// ForgotPassword mails a reset code when the address belongs to an account.
// Unknown addresses succeed silently so callers cannot probe for accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userProvider.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}

	code, err := s.issueCode(ctx, user.ID, CodePurposePasswordReset, s.identity.ResetCodeTTL)
	if err != nil {
		return err
	}

	msg := mail.PasswordReset(user.Email, user.Name, code, s.identity.ResetCodeTTL)
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send reset code: %w", err)
	}

	return nil
}

// ResetPassword consumes the code and stores the new hash together, so a
// failed update leaves the code usable. Sessions are revoked after commit.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	user, err := s.userProvider.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrInvalidCode
		}
		return fmt.Errorf("get user: %w", err)
	}

	newHash, err := core.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx core.DBTX) error {
		err := s.consumeCode(ctx, s.bind(tx), user.ID, CodePurposePasswordReset, req.Code)
		if err != nil {
			return err
		}

		if err := s.userProvider.UpdatePassword(ctx, tx, user.ID, newHash); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.endSessions(ctx, user.ID)
}

// StartCleanup removes expired refresh tokens and codes every interval until
// ctx is cancelled.
func (s *Service) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.repo.DeleteExpired(ctx)
			if err != nil {
				slog.WarnContext(ctx, "expired credential cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.InfoContext(ctx, "expired credentials removed", "count", n)
			}
		}
	}
}

func (s *Service) ValidateTokenVersion(
	ctx context.Context,
	userID string,
	tokenVersion int,
) error {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if tokenVersion < user.TokenVersion {
		return fmt.Errorf("validate token version: %w", core.ErrTokenRevoked)
	}

	return nil
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID string,
) (*UserResponse, error) {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := toUserResponse(user)
	return &resp, nil
}

func (s *Service) checkPassword(password string, user *UserInfo) error {
	valid, _, err := core.VerifyPasswordWithRehash(password, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return ErrInvalidCredentials
	}

	return nil
}

func (s *Service) bind(tx core.DBTX) Repository {
	if tx == nil {
		return s.repo
	}
	return s.repo.WithTx(tx)
}

func (s *Service) endSessions(ctx context.Context, userID string) error {
	if err := s.LogoutAll(ctx, userID); err != nil {
		return fmt.Errorf("logout all: %w", err)
	}

	return nil
}

func (s *Service) sendVerificationCode(ctx context.Context, user *UserInfo) error {
	ttl := s.identity.VerificationCodeTTL

	code, err := s.issueCode(ctx, user.ID, CodePurposeEmailVerification, ttl)
	if err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, mail.VerificationCode(user.Email, user.Name, code, ttl)); err != nil {
		return fmt.Errorf("send verification code: %w", err)
	}

	return nil
}

// issueCode replaces any pending codes of purpose with a new one and returns
// the plain code.
func (s *Service) issueCode(
	ctx context.Context,
	userID, purpose string,
	ttl time.Duration,
) (string, error) {
	code, err := core.RandomString(codeLength, core.CodeAlphabet)
	if err != nil {
		return "", err
	}

	if err := s.repo.DeleteCodes(ctx, userID, purpose); err != nil {
		return "", err
	}

	err = s.repo.CreateCode(ctx, &UserCode{
		ID:        uuid.New().String(),
		UserID:    userID,
		Purpose:   purpose,
		CodeHash:  core.HashToken(code),
		ExpiresAt: time.Now().Add(ttl),
	})
	if err != nil {
		return "", err
	}

	return code, nil
}

func (s *Service) consumeCode(
	ctx context.Context,
	repo Repository,
	userID, purpose, code string,
) error {
	stored, err := repo.FindCode(
		ctx,
		userID,
		purpose,
		core.HashToken(strings.ToUpper(strings.TrimSpace(code))),
	)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrInvalidCode
		}
		return err
	}

	if stored.IsExpired() {
		return ErrCodeExpired
	}

	return repo.DeleteCodes(ctx, userID, purpose)
}

func (s *Service) createAuthResponse(
	ctx context.Context,
	user *UserInfo,
	userAgent, ipAddress, familyID string,
	oldTokenID *string,
) (*AuthResponse, error) {
	accessToken, err := s.jwt.CreateAccessToken(AccessTokenClaims{
		UserID:       user.ID,
		Role:         user.Role,
		TokenVersion: user.TokenVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refreshData, err := s.jwt.CreateRefreshToken(user.ID, familyID)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	newTokenID := uuid.New().String()

	refreshTokenEntity := &RefreshToken{
		ID:        newTokenID,
		UserID:    user.ID,
		TokenHash: refreshData.Hash,
		FamilyID:  refreshData.FamilyID,
		ExpiresAt: refreshData.ExpiresAt,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}

	if err := s.repo.Create(ctx, refreshTokenEntity); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	if oldTokenID != nil {
		//nolint:errcheck // best-effort token chain tracking
		_ = s.repo.MarkAsUsed(ctx, *oldTokenID, newTokenID)
	}

	ttl := s.jwt.AccessTokenTTL()

	return &AuthResponse{
		User: toUserResponse(user),
		Tokens: TokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshData.Token,
			TokenType:    "Bearer",
			ExpiresIn:    int(ttl / time.Second),
			ExpiresAt:    time.Now().Add(ttl),
		},
	}, nil
}

func toUserResponse(user *UserInfo) UserResponse {
	return UserResponse{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		Name:          user.Name,
		Role:          user.Role,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt,
	}
}
