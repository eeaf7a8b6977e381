// AngelaMos | 2026
// fake_test.go

package user

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rzkfyn/ujikom-app-be/internal/core"
	"github.com/rzkfyn/ujikom-app-be/internal/core/coretest"
	"github.com/rzkfyn/ujikom-app-be/internal/storage"
)

type memRepo struct {
	mu       sync.Mutex
	users    map[string]User
	profiles map[string]Profile
	settings map[string]AccountSetting
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:    map[string]User{},
		profiles: map[string]Profile{},
		settings: map[string]AccountSetting{},
	}
}

func (m *memRepo) snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	users, profiles, settings := maps.Clone(m.users), maps.Clone(m.profiles), maps.Clone(m.settings)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.users, m.profiles, m.settings = users, profiles, settings
	}
}

func (m *memRepo) WithTx(core.DBTX) Repository { return m }

func (m *memRepo) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.DeletedAt != nil {
			continue
		}
		if existing.Username == u.Username {
			return &core.DuplicateKeyError{Field: "username"}
		}
		if existing.Email == u.Email {
			return &core.DuplicateKeyError{Field: "email"}
		}
	}

	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = *u
	m.profiles[u.ID] = Profile{UserID: u.ID}
	m.settings[u.ID] = AccountSetting{UserID: u.ID, Visibility: VisibilityPublic}
	return nil
}

func (m *memRepo) find(match func(User) bool) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.DeletedAt == nil && match(u) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
}

func (m *memRepo) GetByID(_ context.Context, id string) (*User, error) {
	return m.find(func(u User) bool { return u.ID == id })
}

func (m *memRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	return m.find(func(u User) bool { return u.Email == email })
}

func (m *memRepo) GetByUsername(_ context.Context, username string) (*User, error) {
	return m.find(func(u User) bool { return u.Username == username })
}

func (m *memRepo) mutate(id string, fn func(*User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok || u.DeletedAt != nil {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	fn(&u)
	m.users[id] = u
	return nil
}

func (m *memRepo) Update(_ context.Context, u *User) error {
	return m.mutate(u.ID, func(stored *User) {
		stored.Name = u.Name
		stored.Role = u.Role
	})
}

func (m *memRepo) UpdatePassword(_ context.Context, id, hash string) error {
	return m.mutate(id, func(u *User) { u.PasswordHash = hash })
}

func (m *memRepo) UpdateEmail(_ context.Context, id, email string) error {
	return m.mutate(id, func(u *User) {
		u.Email = email
		u.EmailVerifiedAt = nil
	})
}

func (m *memRepo) MarkEmailVerified(_ context.Context, id string) error {
	now := time.Now()
	return m.mutate(id, func(u *User) { u.EmailVerifiedAt = &now })
}

func (m *memRepo) IncrementTokenVersion(_ context.Context, id string) error {
	return m.mutate(id, func(u *User) { u.TokenVersion++ })
}

func (m *memRepo) SoftDelete(_ context.Context, id string) error {
	now := time.Now()
	return m.mutate(id, func(u *User) { u.DeletedAt = &now })
}

func (m *memRepo) List(context.Context, ListUsersParams) ([]User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := make([]User, 0, len(m.users))
	for _, u := range m.users {
		if u.DeletedAt == nil {
			users = append(users, u)
		}
	}
	return users, len(users), nil
}

func (m *memRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(context.Background(), email)
	return err == nil, nil
}

func (m *memRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	_, err := m.GetByUsername(context.Background(), username)
	return err == nil, nil
}

func (m *memRepo) GetProfile(_ context.Context, userID string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("get profile: %w", core.ErrNotFound)
	}
	return &p, nil
}

func (m *memRepo) UpdateProfile(_ context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[p.UserID]; !ok {
		return fmt.Errorf("update profile: %w", core.ErrNotFound)
	}
	m.profiles[p.UserID] = *p
	return nil
}

func (m *memRepo) SetImage(
	_ context.Context,
	userID string,
	kind ImageKind,
	key, url string,
) (*string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("set %s: %w", kind, core.ErrNotFound)
	}

	var newKey, newURL *string
	if key != "" {
		newKey, newURL = &key, &url
	}

	var previous *string
	switch kind {
	case ImageAvatar:
		previous, p.AvatarKey, p.AvatarURL = p.AvatarKey, newKey, newURL
	case ImageCover:
		previous, p.CoverKey, p.CoverURL = p.CoverKey, newKey, newURL
	default:
		return nil, fmt.Errorf("set image: unknown kind %q: %w", kind, core.ErrInvalidInput)
	}
	m.profiles[userID] = p
	return previous, nil
}

func (m *memRepo) GetSettings(_ context.Context, userID string) (*AccountSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.settings[userID]
	if !ok {
		return nil, fmt.Errorf("get settings: %w", core.ErrNotFound)
	}
	return &s, nil
}

func (m *memRepo) UpdateVisibility(
	_ context.Context,
	userID, visibility string,
) (*AccountSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.settings[userID]
	if !ok {
		return nil, fmt.Errorf("update visibility: %w", core.ErrNotFound)
	}
	s.Visibility = visibility
	s.UpdatedAt = time.Now()
	m.settings[userID] = s
	return &s, nil
}

func (m *memRepo) GetPresence(context.Context, string) (*Presence, error) {
	return &Presence{Status: "OFFLINE"}, nil
}

// stubRelations answers relationship questions from fixed tables.
type stubRelations struct {
	blockedBy map[string]string
	followers map[string]int
}

func (s *stubRelations) Relationship(
	_ context.Context,
	viewerID, targetID string,
) (*Relationship, error) {
	return &Relationship{IsBlockedBy: s.blockedBy[viewerID] == targetID}, nil
}

func (s *stubRelations) ConnectionCounts(
	_ context.Context,
	userID string,
) (int, int, error) {
	return s.followers[userID], 0, nil
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memStore) Put(
	_ context.Context,
	key string,
	body io.Reader,
	size int64,
	contentType string,
) (*storage.Object, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return &storage.Object{Key: key, URL: "mem://" + key, ContentType: contentType, Size: size}, nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Collect(maps.Keys(s.objects))
}

type stubRetractor struct {
	removed []string
	err     error
}

func (s *stubRetractor) RemoveInvolving(_ context.Context, _ core.DBTX, userID string) error {
	if s.err != nil {
		return s.err
	}
	s.removed = append(s.removed, userID)
	return nil
}

type fixture struct {
	repo          *memRepo
	relations     *stubRelations
	notifications *stubRetractor
	store         *memStore
	tx            *coretest.Transactor
	svc           *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo: newMemRepo(),
		relations: &stubRelations{
			blockedBy: map[string]string{},
			followers: map[string]int{},
		},
		notifications: &stubRetractor{},
		store:         &memStore{objects: map[string][]byte{}},
	}
	f.tx = &coretest.Transactor{Snapshot: f.repo.snapshot}
	f.svc = NewService(f.repo, f.tx, f.relations, f.notifications, f.store, 1024)
	return f
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func formFile(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	return form.File["file"][0]
}
