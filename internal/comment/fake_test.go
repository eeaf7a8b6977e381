// AngelaMos | 2026
// fake_test.go

package comment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rzkfyn/ujikom-app-be/internal/config"
	"github.com/rzkfyn/ujikom-app-be/internal/core"
	"github.com/rzkfyn/ujikom-app-be/internal/core/coretest"
	"github.com/rzkfyn/ujikom-app-be/internal/notification"
	"github.com/rzkfyn/ujikom-app-be/internal/notification/notificationtest"
	"github.com/rzkfyn/ujikom-app-be/internal/post"
	"github.com/rzkfyn/ujikom-app-be/internal/storage"
	"github.com/rzkfyn/ujikom-app-be/internal/user"
)

type pair [2]string

type memRepo struct {
	mu       sync.Mutex
	posts    *fakePosts
	comments map[string]*Comment
	media    map[string][]Media
	likes    map[pair]bool
	clock    time.Time
}

func newMemRepo(posts *fakePosts) *memRepo {
	return &memRepo{
		posts:    posts,
		comments: make(map[string]*Comment),
		media:    make(map[string][]Media),
		likes:    make(map[pair]bool),
		clock:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memRepo) snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	comments := make(map[string]*Comment, len(m.comments))
	for k, c := range m.comments {
		cp := *c
		comments[k] = &cp
	}
	media := maps.Clone(m.media)
	likes := maps.Clone(m.likes)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.comments = comments
		m.media = media
		m.likes = likes
	}
}

func (m *memRepo) WithTx(core.DBTX) Repository { return m }

func (m *memRepo) Insert(_ context.Context, c *Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clock = m.clock.Add(time.Second)
	c.CreatedAt = m.clock

	cp := *c
	m.comments[c.ID] = &cp
	return nil
}

func (m *memRepo) InsertMedia(_ context.Context, media []Media) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, md := range media {
		m.media[md.CommentID] = append(m.media[md.CommentID], md)
	}
	return nil
}

func (m *memRepo) MediaFor(_ context.Context, commentIDs []string) ([]Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Media
	for _, id := range commentIDs {
		out = append(out, m.media[id]...)
	}
	return out, nil
}

func (m *memRepo) Get(_ context.Context, id string) (*Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.comments[id]
	if !ok || c.DeletedAt != nil {
		return nil, ErrCommentNotFound
	}
	p := m.posts.byID(c.PostID)
	if p == nil {
		return nil, ErrCommentNotFound
	}
	return &Target{Comment: *c, PostCode: p.Code, PostAuthorID: p.AuthorID}, nil
}

func (m *memRepo) itemFor(viewerID string, c *Comment) Item {
	it := Item{
		Comment: *c,
		Author:  user.Summary{ID: c.AuthorID},
		Liked:   m.likes[pair{c.ID, viewerID}],
	}
	for k := range m.likes {
		if k[0] == c.ID {
			it.LikeCount++
		}
	}
	return it
}

func (m *memRepo) GetItem(_ context.Context, viewerID, id string) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.comments[id]
	if !ok || c.DeletedAt != nil {
		return nil, ErrCommentNotFound
	}
	it := m.itemFor(viewerID, c)
	return &it, nil
}

func (m *memRepo) List(_ context.Context, q ListQuery) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []Item
	for _, c := range m.comments {
		if c.PostID != q.PostID || c.DeletedAt != nil {
			continue
		}
		if !coretest.Admits(q.Cursor, c.CreatedAt, c.ID) {
			continue
		}
		items = append(items, m.itemFor(q.ViewerID, c))
	}

	sort.Slice(items, func(i, j int) bool {
		return coretest.NewestFirst(items[i].CreatedAt, items[i].ID, items[j].CreatedAt, items[j].ID)
	})
	if q.Cursor.Limit > 0 && len(items) > q.Cursor.Limit {
		items = items[:q.Cursor.Limit]
	}
	return items, nil
}

func (m *memRepo) SoftDelete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.comments[id]
	if !ok || c.DeletedAt != nil {
		return ErrCommentNotFound
	}
	now := m.clock
	c.DeletedAt = &now
	return nil
}

func (m *memRepo) Purge(_ context.Context, id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.likes {
		if k[0] == id {
			delete(m.likes, k)
		}
	}

	var keys []string
	for _, md := range m.media[id] {
		keys = append(keys, md.ObjectKey)
	}
	delete(m.media, id)
	return keys, nil
}

func (m *memRepo) InsertLike(_ context.Context, commentID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := pair{commentID, userID}
	if m.likes[k] {
		return false, nil
	}
	m.likes[k] = true
	return true, nil
}

func (m *memRepo) DeleteLike(_ context.Context, commentID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := pair{commentID, userID}
	if !m.likes[k] {
		return false, nil
	}
	delete(m.likes, k)
	return true, nil
}

func (m *memRepo) liveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.comments {
		if c.DeletedAt == nil {
			n++
		}
	}
	return n
}

// fakePosts stands in for the post service. Mentions resolve against the
// registered usernames and are recorded through the shared notifier.
type fakePosts struct {
	mu       sync.Mutex
	notifier *notificationtest.Recorder
	users    map[string]string
	posts    map[string]*post.Item
	hidden   map[pair]bool
	signals  []string
	seq      int
}

func newFakePosts(notifier *notificationtest.Recorder) *fakePosts {
	return &fakePosts{
		notifier: notifier,
		users:    make(map[string]string),
		posts:    make(map[string]*post.Item),
		hidden:   make(map[pair]bool),
	}
}

func (f *fakePosts) addUser(username string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := "id-" + username
	f.users[username] = id
	return id
}

func (f *fakePosts) addPost(authorID string) *post.Item {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	it := &post.Item{Post: post.Post{
		ID:       fmt.Sprintf("post-%d", f.seq),
		Code:     fmt.Sprintf("code%04d", f.seq),
		AuthorID: authorID,
	}}
	f.posts[it.Code] = it
	return it
}

func (f *fakePosts) hide(viewerID, authorID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hidden[pair{viewerID, authorID}] = true
}

func (f *fakePosts) byID(id string) *post.Item {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.posts {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (f *fakePosts) Visible(_ context.Context, viewerID, code string) (*post.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.posts[code]
	if !ok || f.hidden[pair{viewerID, p.AuthorID}] {
		return nil, post.ErrPostNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePosts) Mention(
	ctx context.Context,
	tx core.DBTX,
	authorID, text string,
	kind notification.Kind,
	related *notification.Related,
) error {
	for _, name := range post.ParseMentions(text) {
		f.mu.Lock()
		id, ok := f.users[name]
		f.mu.Unlock()
		if !ok {
			continue
		}

		if err := f.notifier.Create(ctx, tx, notification.Key{
			ReceiverID: id,
			ActorID:    authorID,
			Kind:       kind,
			Related:    related,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakePosts) Signal(ctx context.Context, code string) {
	core.AfterCommit(ctx, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.signals = append(f.signals, code)
	})
}

func (f *fakePosts) signalled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.signals)
}

// memStore is an object store that remembers what it holds.
type memStore struct {
	mu      sync.Mutex
	objects map[string]string
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string]string)}
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
	s.objects[key] = contentType
	return &storage.Object{Key: key, URL: "http://media/" + key, ContentType: contentType, Size: size}, nil
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

var (
	pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	mp4Header = []byte("\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp42isom")
)

// formFiles builds multipart file headers the way net/http parses them.
func formFiles(t *testing.T, contents ...[]byte) []*multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for i, c := range contents {
		part, err := w.CreateFormFile("media", fmt.Sprintf("file%d", i))
		require.NoError(t, err)
		_, err = part.Write(c)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))

	return req.MultipartForm.File["media"]
}

type fixture struct {
	repo     *memRepo
	posts    *fakePosts
	store    *memStore
	notifier *notificationtest.Recorder
	tx       *coretest.Transactor
	svc      *Service
}

func newFixture() *fixture {
	notifier := notificationtest.NewRecorder()
	posts := newFakePosts(notifier)
	repo := newMemRepo(posts)

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

	store := newMemStore()

	svc := NewService(repo, tx, notifier, posts, store, config.ContentConfig{
		AnonymousComments: 5,
		MaxImageBytes:     1 << 10,
	})

	return &fixture{
		repo:     repo,
		posts:    posts,
		store:    store,
		notifier: notifier,
		tx:       tx,
		svc:      svc,
	}
}
