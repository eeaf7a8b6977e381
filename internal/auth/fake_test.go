// AngelaMos | 2026
// fake_test.go

package auth

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/rzkfyn/ujikom-app-be/internal/config"
	"github.com/rzkfyn/ujikom-app-be/internal/core"
	"github.com/rzkfyn/ujikom-app-be/internal/core/coretest"
	"github.com/rzkfyn/ujikom-app-be/internal/mail"
)

type memRepo struct {
	mu     sync.Mutex
	tokens map[string]*RefreshToken
	codes  map[string]*UserCode
}

func newMemRepo() *memRepo {
	return &memRepo{
		tokens: map[string]*RefreshToken{},
		codes:  map[string]*UserCode{},
	}
}

func (m *memRepo) WithTx(core.DBTX) Repository { return m }

// snapshot copies the codes so a failed unit of work can put them back.
func (m *memRepo) snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := make(map[string]UserCode, len(m.codes))
	for id, c := range m.codes {
		saved[id] = *c
	}

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.codes = make(map[string]*UserCode, len(saved))
		for id, c := range saved {
			m.codes[id] = &c
		}
	}
}

func (m *memRepo) Create(_ context.Context, t *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t.CreatedAt = time.Now()
	stored := *t
	m.tokens[t.ID] = &stored
	return nil
}

func (m *memRepo) FindByHash(_ context.Context, hash string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tokens {
		if t.TokenHash == hash {
			found := *t
			return &found, nil
		}
	}
	return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
}

func (m *memRepo) FindByID(_ context.Context, id string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[id]
	if !ok {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	found := *t
	return &found, nil
}

func (m *memRepo) MarkAsUsed(_ context.Context, id, replacedByID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[id]
	if !ok {
		return fmt.Errorf("mark token used: %w", core.ErrNotFound)
	}
	t.MarkAsUsed(replacedByID)
	return nil
}

func (m *memRepo) revokeWhere(match func(*RefreshToken) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tokens {
		if t.RevokedAt == nil && match(t) {
			t.Revoke()
		}
	}
}

func (m *memRepo) RevokeByID(_ context.Context, id string) error {
	m.revokeWhere(func(t *RefreshToken) bool { return t.ID == id })
	return nil
}

func (m *memRepo) RevokeByFamilyID(_ context.Context, familyID string) error {
	m.revokeWhere(func(t *RefreshToken) bool { return t.FamilyID == familyID })
	return nil
}

func (m *memRepo) RevokeAllForUser(_ context.Context, userID string) error {
	m.revokeWhere(func(t *RefreshToken) bool { return t.UserID == userID })
	return nil
}

func (m *memRepo) GetActiveSessionsForUser(
	_ context.Context,
	userID string,
) ([]RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sessions []RefreshToken
	for _, t := range m.tokens {
		if t.UserID == userID && t.IsValid() {
			sessions = append(sessions, *t)
		}
	}
	return sessions, nil
}

func (m *memRepo) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}

func (m *memRepo) CreateCode(_ context.Context, c *UserCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *c
	m.codes[c.ID] = &stored
	return nil
}

func (m *memRepo) FindCode(
	_ context.Context,
	userID, purpose, hash string,
) (*UserCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.codes {
		if c.UserID == userID && c.Purpose == purpose && c.CodeHash == hash {
			found := *c
			return &found, nil
		}
	}
	return nil, fmt.Errorf("find code: %w", core.ErrNotFound)
}

func (m *memRepo) DeleteCodes(_ context.Context, userID, purpose string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, c := range m.codes {
		if c.UserID == userID && c.Purpose == purpose {
			delete(m.codes, id)
		}
	}
	return nil
}

func (m *memRepo) expireCodes() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.codes {
		c.ExpiresAt = time.Now().Add(-time.Minute)
	}
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*UserInfo
	fail  error
}

func (u *memUsers) GetByEmail(_ context.Context, email string) (*UserInfo, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, info := range u.users {
		if info.Email == strings.ToLower(email) {
			found := *info
			return &found, nil
		}
	}
	return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
}

func (u *memUsers) GetByID(_ context.Context, id string) (*UserInfo, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	info, ok := u.users[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	found := *info
	return &found, nil
}

func (u *memUsers) Create(_ context.Context, input NewUser) (*UserInfo, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, info := range u.users {
		if info.Username == input.Username {
			return nil, &core.DuplicateKeyError{Field: "username"}
		}
	}

	info := &UserInfo{
		ID:           uuid.New().String(),
		Username:     input.Username,
		Email:        strings.ToLower(input.Email),
		Name:         input.Name,
		PasswordHash: input.PasswordHash,
		Role:         "user",
		CreatedAt:    time.Now(),
	}
	u.users[info.ID] = info
	created := *info
	return &created, nil
}

func (u *memUsers) update(id string, fn func(*UserInfo)) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.fail != nil {
		return u.fail
	}

	info, ok := u.users[id]
	if !ok {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	fn(info)
	return nil
}

func (u *memUsers) IncrementTokenVersion(_ context.Context, id string) error {
	return u.update(id, func(info *UserInfo) { info.TokenVersion++ })
}

func (u *memUsers) UpdatePassword(_ context.Context, _ core.DBTX, id, hash string) error {
	return u.update(id, func(info *UserInfo) { info.PasswordHash = hash })
}

func (u *memUsers) UpdateEmail(_ context.Context, id, email string) error {
	return u.update(id, func(info *UserInfo) {
		info.Email = email
		info.EmailVerified = false
	})
}

func (u *memUsers) MarkEmailVerified(_ context.Context, _ core.DBTX, id string) error {
	return u.update(id, func(info *UserInfo) { info.EmailVerified = true })
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (r *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

var mailedCode = regexp.MustCompile(`code (?:is )?([A-Z0-9]{6})`)

// lastCode returns the code in the most recent message sent to addr.
func (r *recordingMailer) lastCode(t *testing.T, addr string) string {
	t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].To != addr {
			continue
		}
		m := mailedCode.FindStringSubmatch(r.sent[i].Body)
		require.Len(t, m, 2, "no code in %q", r.sent[i].Body)
		return m[1]
	}
	t.Fatalf("no mail sent to %s", addr)
	return ""
}

func newTestJWT(t *testing.T, accessTTL time.Duration) *JWTManager {
	t.Helper()

	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")
	require.NoError(t, GenerateKeyPair(priv, pub))

	m, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath:     priv,
		PublicKeyPath:      pub,
		AccessTokenExpire:  accessTTL,
		RefreshTokenExpire: time.Hour,
		Issuer:             "test-issuer",
		Audience:           "test-audience",
	})
	require.NoError(t, err)
	return m
}

type fixture struct {
	repo   *memRepo
	tx     *coretest.Transactor
	users  *memUsers
	mailer *recordingMailer
	svc    *Service
}

// newFixture points redis at a closed port; the flows under test never
// reach it, and blacklist lookups that do fail open.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:   newMemRepo(),
		users:  &memUsers{users: map[string]*UserInfo{}},
		mailer: &recordingMailer{},
	}
	f.tx = &coretest.Transactor{Snapshot: f.repo.snapshot}

	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	f.svc = NewService(f.repo, f.tx, newTestJWT(t, 15*time.Minute), f.users, rdb, f.mailer,
		config.IdentityConfig{
			VerificationCodeTTL: 15 * time.Minute,
			ResetCodeTTL:        time.Hour,
		})
	return f
}
