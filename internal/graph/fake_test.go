// AngelaMos | 2026
// fake_test.go

package graph

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/rzkfyn/ujikom-app-be/internal/core"
	"github.com/rzkfyn/ujikom-app-be/internal/core/coretest"
	"github.com/rzkfyn/ujikom-app-be/internal/notification/notificationtest"
	"github.com/rzkfyn/ujikom-app-be/internal/user"
)

type pair [2]string

// memStore is an in-memory graph whose inserts enforce the same
// uniqueness the database indexes do.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*Target
	follows  map[pair]bool
	requests map[pair]bool
	blocks   map[pair]bool
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*Target),
		follows:  make(map[pair]bool),
		requests: make(map[pair]bool),
		blocks:   make(map[pair]bool),
	}
}

func (m *memStore) addUser(username, visibility string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := "id-" + username
	m.users[username] = &Target{ID: id, Username: username, Visibility: visibility}
	return id
}

func (m *memStore) setVisibility(username, visibility string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[username].Visibility = visibility
}

func (m *memStore) snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	follows := maps.Clone(m.follows)
	requests := maps.Clone(m.requests)
	blocks := maps.Clone(m.blocks)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.follows, m.requests, m.blocks = follows, requests, blocks
	}
}

func (m *memStore) countFollows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.follows)
}

func (m *memStore) hasFollow(a, b string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.follows[pair{a, b}]
}

func (m *memStore) hasRequest(a, b string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[pair{a, b}]
}

func (m *memStore) WithTx(core.DBTX) Repository { return m }

func (m *memStore) FindTarget(_ context.Context, username string) (*Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.users[strings.ToLower(username)]
	if !ok {
		return nil, core.Detail(core.ErrNotFound, "user not found")
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) GetTarget(_ context.Context, id string) (*Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.users {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *memStore) has(set map[pair]bool, a, b string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return set[pair{a, b}]
}

func (m *memStore) insert(set map[pair]bool, a, b string, dup error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if set[pair{a, b}] {
		return dup
	}
	set[pair{a, b}] = true
	return nil
}

func (m *memStore) remove(set map[pair]bool, a, b string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !set[pair{a, b}] {
		return false
	}
	delete(set, pair{a, b})
	return true
}

func (m *memStore) IsFollowing(_ context.Context, a, b string) (bool, error) {
	return m.has(m.follows, a, b), nil
}

func (m *memStore) InsertFollow(_ context.Context, a, b string) error {
	return m.insert(m.follows, a, b, errAlreadyFollowing)
}

func (m *memStore) DeleteFollow(_ context.Context, a, b string) (bool, error) {
	return m.remove(m.follows, a, b), nil
}

func (m *memStore) HasRequest(_ context.Context, a, b string) (bool, error) {
	return m.has(m.requests, a, b), nil
}

func (m *memStore) InsertRequest(_ context.Context, a, b string) error {
	return m.insert(m.requests, a, b, errAlreadyRequested)
}

func (m *memStore) DeleteRequest(_ context.Context, a, b string) (bool, error) {
	return m.remove(m.requests, a, b), nil
}

func (m *memStore) IsBlocking(_ context.Context, a, b string) (bool, error) {
	return m.has(m.blocks, a, b), nil
}

func (m *memStore) IsBlockedEither(_ context.Context, a, b string) (bool, error) {
	return m.has(m.blocks, a, b) || m.has(m.blocks, b, a), nil
}

func (m *memStore) InsertBlock(_ context.Context, a, b string) error {
	return m.insert(m.blocks, a, b, core.ErrAlreadyBlocked)
}

func (m *memStore) DeleteBlock(_ context.Context, a, b string) (bool, error) {
	return m.remove(m.blocks, a, b), nil
}

func (m *memStore) summary(id string) user.Summary {
	for _, t := range m.users {
		if t.ID == id {
			return user.Summary{ID: t.ID, Username: t.Username, Name: t.Username}
		}
	}
	return user.Summary{ID: id}
}

func (m *memStore) ListConnections(
	_ context.Context,
	userID string,
	dir Direction,
) ([]user.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []user.Summary
	for p := range m.follows {
		switch {
		case dir == DirectionFollowers && p[1] == userID:
			out = append(out, m.summary(p[0]))
		case dir == DirectionFollowing && p[0] == userID:
			out = append(out, m.summary(p[1]))
		}
	}
	sortSummaries(out)
	return out, nil
}

func (m *memStore) ListRequests(
	_ context.Context,
	userID string,
	incoming bool,
) ([]RequestItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []RequestItem
	for p := range m.requests {
		switch {
		case incoming && p[1] == userID:
			out = append(out, RequestItem{User: m.summary(p[0])})
		case !incoming && p[0] == userID:
			out = append(out, RequestItem{User: m.summary(p[1])})
		}
	}
	return out, nil
}

func (m *memStore) ListBlocked(_ context.Context, blockerID string) ([]user.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []user.Summary
	for p := range m.blocks {
		if p[0] == blockerID {
			out = append(out, m.summary(p[1]))
		}
	}
	sortSummaries(out)
	return out, nil
}

func (m *memStore) CountConnections(_ context.Context, userID string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var followers, following int
	for p := range m.follows {
		if p[1] == userID {
			followers++
		}
		if p[0] == userID {
			following++
		}
	}
	return followers, following, nil
}

func sortSummaries(s []user.Summary) {
	sort.Slice(s, func(i, j int) bool { return s[i].Username < s[j].Username })
}

type fixture struct {
	store    *memStore
	notifier *notificationtest.Recorder
	tx       *coretest.Transactor
	svc      *Service
}

func newFixture() *fixture {
	store := newMemStore()
	notifier := notificationtest.NewRecorder()

	tx := &coretest.Transactor{
		Snapshot: func() func() {
			restoreStore := store.snapshot()
			restoreNotifier := notifier.Snapshot()
			return func() {
				restoreStore()
				restoreNotifier()
			}
		},
	}

	return &fixture{
		store:    store,
		notifier: notifier,
		tx:       tx,
		svc:      NewService(store, tx, notifier),
	}
}
