// AngelaMos | 2026
// fake_test.go

package post

import (
	"bytes"
	"context"
	"io"
	"maps"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rzkfyn/ujikom-app-be/internal/config"
	"github.com/rzkfyn/ujikom-app-be/internal/core"
	"github.com/rzkfyn/ujikom-app-be/internal/core/coretest"
	"github.com/rzkfyn/ujikom-app-be/internal/notification/notificationtest"
	"github.com/rzkfyn/ujikom-app-be/internal/storage"
	"github.com/rzkfyn/ujikom-app-be/internal/user"
)

type pair [2]string

// memRepo keeps posts in memory. Visibility is modelled by the hidden set:
// a hidden (viewer, author) pair cannot see the author's posts.
type memRepo struct {
	mu           sync.Mutex
	users        map[string]string
	posts        map[string]*Post
	media        map[string][]Media
	likes        map[pair]bool
	saves        map[pair]bool
	mentions     map[string][]string
	comments     map[string][]string
	commentMedia map[string][]string
	hidden       map[pair]bool
	clock        time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:        make(map[string]string),
		posts:        make(map[string]*Post),
		media:        make(map[string][]Media),
		likes:        make(map[pair]bool),
		saves:        make(map[pair]bool),
		mentions:     make(map[string][]string),
		comments:     make(map[string][]string),
		commentMedia: make(map[string][]string),
		hidden:       make(map[pair]bool),
		clock:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memRepo) addUser(username string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := "id-" + username
	m.users[username] = id
	return id
}

func (m *memRepo) hide(viewerID, authorID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hidden[pair{viewerID, authorID}] = true
}

// addComment records a comment on postID whose images live at mediaKeys.
func (m *memRepo) addComment(postID, commentID string, mediaKeys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments[postID] = append(m.comments[postID], commentID)
	m.commentMedia[postID] = append(m.commentMedia[postID], mediaKeys...)
}

func (m *memRepo) snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	posts := make(map[string]*Post, len(m.posts))
	for k, p := range m.posts {
		cp := *p
		posts[k] = &cp
	}
	media := maps.Clone(m.media)
	likes := maps.Clone(m.likes)
	saves := maps.Clone(m.saves)
	mentions := maps.Clone(m.mentions)
	comments := maps.Clone(m.comments)
	commentMedia := maps.Clone(m.commentMedia)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.posts = posts
		m.media = media
		m.likes = likes
		m.saves = saves
		m.mentions = mentions
		m.comments = comments
		m.commentMedia = commentMedia
	}
}

func (m *memRepo) WithTx(core.DBTX) Repository { return m }

func (m *memRepo) Insert(_ context.Context, p *Post) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.posts {
		if existing.Code == p.Code {
			return false, nil
		}
	}
	m.clock = m.clock.Add(time.Second)
	p.CreatedAt, p.UpdatedAt = m.clock, m.clock

	cp := *p
	m.posts[p.ID] = &cp
	return true, nil
}

func (m *memRepo) InsertMedia(_ context.Context, media []Media) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, md := range media {
		m.media[md.PostID] = append(m.media[md.PostID], md)
	}
	return nil
}

func (m *memRepo) byCode(code string) *Post {
	for _, p := range m.posts {
		if p.Code == code && p.DeletedAt == nil {
			return p
		}
	}
	return nil
}

func (m *memRepo) GetByCode(_ context.Context, code string) (*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.byCode(code)
	if p == nil {
		return nil, ErrPostNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) itemFor(viewerID string, p *Post) (*Item, bool) {
	if p == nil || p.DeletedAt != nil || m.hidden[pair{viewerID, p.AuthorID}] {
		return nil, false
	}

	it := &Item{
		Post:   *p,
		Author: user.Summary{ID: p.AuthorID},
		Liked:  m.likes[pair{p.ID, viewerID}],
		Saved:  m.saves[pair{p.ID, viewerID}],
	}
	for k := range m.likes {
		if k[0] == p.ID {
			it.LikeCount++
		}
	}
	it.CommentCount = len(m.comments[p.ID])
	for _, other := range m.posts {
		if other.SharedPostID != nil && *other.SharedPostID == p.ID && other.DeletedAt == nil {
			it.ShareCount++
		}
	}
	if p.SharedPostID != nil {
		if orig, ok := m.posts[*p.SharedPostID]; ok && orig.DeletedAt == nil {
			code := orig.Code
			it.SharedCode = &code
		}
	}
	return it, true
}

func (m *memRepo) GetItem(_ context.Context, viewerID, code string) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.itemFor(viewerID, m.byCode(code))
	if !ok {
		return nil, ErrPostNotFound
	}
	return it, nil
}

func (m *memRepo) GetItemByID(_ context.Context, viewerID, id string) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.itemFor(viewerID, m.posts[id])
	if !ok {
		return nil, ErrPostNotFound
	}
	return it, nil
}

func (m *memRepo) List(_ context.Context, q ListQuery) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []Item
	for _, p := range m.posts {
		it, ok := m.itemFor(q.ViewerID, p)
		if !ok {
			continue
		}
		if q.Scope == ScopeAuthor && p.AuthorID != q.AuthorID {
			continue
		}
		if q.Scope == ScopeSaved && !it.Saved {
			continue
		}
		if !coretest.Admits(q.Cursor, p.CreatedAt, p.ID) {
			continue
		}
		items = append(items, *it)
	}

	sort.Slice(items, func(i, j int) bool {
		return coretest.NewestFirst(items[i].CreatedAt, items[i].ID, items[j].CreatedAt, items[j].ID)
	})
	if q.Cursor.Limit > 0 && len(items) > q.Cursor.Limit {
		items = items[:q.Cursor.Limit]
	}
	return items, nil
}

func (m *memRepo) MediaFor(_ context.Context, postIDs []string) ([]Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Media
	for _, id := range postIDs {
		out = append(out, m.media[id]...)
	}
	return out, nil
}

func (m *memRepo) SoftDelete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[id]
	if !ok || p.DeletedAt != nil {
		return ErrPostNotFound
	}
	now := p.CreatedAt
	p.DeletedAt = &now
	return nil
}

func (m *memRepo) Purge(_ context.Context, postID string) (*Purged, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	purged := &Purged{
		CommentIDs: m.comments[postID],
		MediaKeys:  slices.Clone(m.commentMedia[postID]),
	}
	delete(m.comments, postID)
	delete(m.commentMedia, postID)

	for k := range m.likes {
		if k[0] == postID {
			delete(m.likes, k)
		}
	}
	for k := range m.saves {
		if k[0] == postID {
			delete(m.saves, k)
		}
	}
	delete(m.mentions, postID)

	for _, md := range m.media[postID] {
		purged.MediaKeys = append(purged.MediaKeys, md.ObjectKey)
	}
	delete(m.media, postID)

	return purged, nil
}

func (m *memRepo) toggle(set map[pair]bool, k pair, on bool) bool {
	if set[k] == on {
		return false
	}
	if on {
		set[k] = true
	} else {
		delete(set, k)
	}
	return true
}

func (m *memRepo) InsertLike(_ context.Context, postID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.toggle(m.likes, pair{postID, userID}, true), nil
}

func (m *memRepo) DeleteLike(_ context.Context, postID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.toggle(m.likes, pair{postID, userID}, false), nil
}

func (m *memRepo) InsertSave(_ context.Context, postID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.toggle(m.saves, pair{postID, userID}, true), nil
}

func (m *memRepo) DeleteSave(_ context.Context, postID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.toggle(m.saves, pair{postID, userID}, false), nil
}

func (m *memRepo) FindUserID(_ context.Context, username string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.users[strings.ToLower(username)]
	if !ok {
		return "", errUserNotFound
	}
	return id, nil
}

func (m *memRepo) ResolveUsernames(_ context.Context, usernames []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for _, name := range usernames {
		if id, ok := m.users[name]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memRepo) InsertMentions(
	_ context.Context,
	_, entityID string,
	userIDs []string,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range userIDs {
		if !slices.Contains(m.mentions[entityID], id) {
			m.mentions[entityID] = append(m.mentions[entityID], id)
		}
	}
	return nil
}

func (m *memRepo) postCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, p := range m.posts {
		if p.DeletedAt == nil {
			n++
		}
	}
	return n
}

// memStore is an object store that remembers what it holds.
type memStore struct {
	mu      sync.Mutex
	objects map[string]int64
	deleted []string
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string]int64)}
}

func (s *memStore) Put(
	_ context.Context,
	key string,
	body io.Reader,
	size int64,
	contentType string,
) (*storage.Object, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = size
	return &storage.Object{Key: key, URL: "http://media/" + key, ContentType: contentType, Size: size}, nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type allowAll struct{}

func (allowAll) CanViewUser(context.Context, string, string) error { return nil }

type codeLog struct {
	mu    sync.Mutex
	codes []string
}

func (l *codeLog) PostStateChanged(_ context.Context, code string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.codes = append(l.codes, code)
}

func (l *codeLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.codes)
}

type fixture struct {
	repo     *memRepo
	notifier *notificationtest.Recorder
	store    *memStore
	signals  *codeLog
	tx       *coretest.Transactor
	svc      *Service
}

func newFixture() *fixture {
	repo := newMemRepo()
	notifier := notificationtest.NewRecorder()
	store := newMemStore()
	signals := &codeLog{}

	tx := &coretest.Transactor{
		Snapshot: func() func() {
			restoreRepo := repo.snapshot()
			restoreNotifier := notifier.Snapshot()
			return func() {
				restoreRepo()
				restoreNotifier()
			}
		},
	}

	svc := NewService(repo, tx, notifier, allowAll{}, store, signals, config.ContentConfig{
		MaxMediaBytes:   1 << 20,
		MaxMediaPerPost: 3,
	})

	return &fixture{
		repo:     repo,
		notifier: notifier,
		store:    store,
		signals:  signals,
		tx:       tx,
		svc:      svc,
	}
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// formFiles builds multipart file headers the way net/http parses them.
func formFiles(t *testing.T, contents ...[]byte) []*multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for i, c := range contents {
		part, err := w.CreateFormFile("media", "file"+string(rune('a'+i))+".png")
		require.NoError(t, err)
		_, err = part.Write(c)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/posts", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))

	return req.MultipartForm.File["media"]
}
