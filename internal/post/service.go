// AngelaMos | 2026
// service.go

package post

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rzkfyn/ujikom-app-be/internal/config"
	"github.com/rzkfyn/ujikom-app-be/internal/core"
	"github.com/rzkfyn/ujikom-app-be/internal/notification"
	"github.com/rzkfyn/ujikom-app-be/internal/storage"
)

// Notifier records and retracts the notifications content produces. Calls
// join the caller's transaction through tx.
type Notifier interface {
	Create(ctx context.Context, tx core.DBTX, key notification.Key) error
	Remove(ctx context.Context, tx core.DBTX, key notification.Key) error
	RemoveByRelatedEntity(
		ctx context.Context,
		tx core.DBTX,
		kind notification.EntityKind,
		ids ...string,
	) error
}

// Audience decides whether a viewer may see a user's content.
type Audience interface {
	CanViewUser(ctx context.Context, viewerID, ownerID string) error
}

type StateSignaler interface {
	PostStateChanged(ctx context.Context, postCode string)
}

const codeAttempts = 5

var (
	errEmptyPost     = core.Detail(core.ErrInvalidInput, "post must have text or media")
	errTextTooLong   = core.Detail(core.ErrInvalidInput, fmt.Sprintf("text must be at most %d characters", MaxTextLength))
	errNotAuthor     = core.Detail(core.ErrForbidden, "you do not have permission to delete this post")
	errAlreadyLiked  = core.Detail(core.ErrAlreadyExists, "you already liked this post")
	errNotLiked      = core.Detail(core.ErrNotLiked, "you have not liked this post")
	errAlreadySaved  = core.Detail(core.ErrAlreadyExists, "you already saved this post")
	errNotSaved      = core.Detail(core.ErrNotSaved, "you have not saved this post")
	errCodeExhausted = fmt.Errorf("allocate post code: exhausted %d attempts", codeAttempts)
)

type Service struct {
	repo     Repository
	tx       core.Transactor
	notifier Notifier
	audience Audience
	store    storage.ObjectStore
	signaler StateSignaler
	cfg      config.ContentConfig
}

func NewService(
	repo Repository,
	tx core.Transactor,
	notifier Notifier,
	audience Audience,
	store storage.ObjectStore,
	signaler StateSignaler,
	cfg config.ContentConfig,
) *Service {
	return &Service{
		repo:     repo,
		tx:       tx,
		notifier: notifier,
		audience: audience,
		store:    store,
		signaler: signaler,
		cfg:      cfg,
	}
}

type CreateInput struct {
	Text  string
	Files []*multipart.FileHeader
}

// Create uploads the media, then stores the post, its media rows and its
// mentions in one transaction. Uploaded objects are removed if the
// transaction fails.
func (s *Service) Create(
	ctx context.Context,
	authorID string,
	in CreateInput,
) (*Item, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && len(in.Files) == 0 {
		return nil, errEmptyPost
	}
	if err := validateText(text); err != nil {
		return nil, err
	}
	if limit := s.cfg.MaxMediaPerPost; limit > 0 && len(in.Files) > limit {
		return nil, core.Detail(core.ErrInvalidInput,
			fmt.Sprintf("a post can have at most %d media files", limit))
	}

	objects, err := s.upload(ctx, authorID, in.Files)
	if err != nil {
		return nil, err
	}

	p := &Post{ID: uuid.New().String(), AuthorID: authorID, Text: text}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx core.DBTX) error {
		repo := s.repo.WithTx(tx)

		if err := s.insert(ctx, repo, p); err != nil {
			return err
		}

		media := make([]Media, 0, len(objects))
		for i, obj := range objects {
			media = append(media, Media{
				ID:          uuid.New().String(),
				PostID:      p.ID,
				ObjectKey:   obj.Key,
				URL:         obj.URL,
				ContentType: obj.ContentType,
				SizeBytes:   obj.Size,
				Position:    i,
			})
		}
		if err := repo.InsertMedia(ctx, media); err != nil {
			return err
		}

		return s.mention(ctx, tx, repo, p)
	})
	if err != nil {
		for _, obj := range objects {
			s.removeObject(ctx, obj.Key)
		}
		return nil, err
	}

	return s.Get(ctx, authorID, p.Code)
}

// Share creates a post pointing at code. The original author is notified
// with the share as the related entity, so deleting the share retracts it.
func (s *Service) Share(
	ctx context.Context,
	actorID, code, text string,
) (*Item, error) {
	text = strings.TrimSpace(text)
	if err := validateText(text); err != nil {
		return nil, err
	}

	original, err := s.repo.GetItem(ctx, actorID, code)
	if err != nil {
		return nil, err
	}

	p := &Post{
		ID:           uuid.New().String(),
		AuthorID:     actorID,
		Text:         text,
		SharedPostID: &original.ID,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx core.DBTX) error {
		repo := s.repo.WithTx(tx)

		if err := s.insert(ctx, repo, p); err != nil {
			return err
		}

		if err := s.notifier.Create(ctx, tx, shareKey(original, p)); err != nil {
			return err
		}

		return s.mention(ctx, tx, repo, p)
	})
	if err != nil {
		return nil, err
	}

	s.signal(ctx, original.Code)
	return s.Get(ctx, actorID, p.Code)
}

// Delete removes the post and everything that refers to it. Only the
// author may delete a post.
func (s *Service) Delete(ctx context.Context, actorID, code string) error {
	p, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if p.AuthorID != actorID {
		return errNotAuthor
	}

	var purged *Purged
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx core.DBTX) error {
		repo := s.repo.WithTx(tx)

		if err := repo.SoftDelete(ctx, p.ID); err != nil {
			return err
		}

		var err error
		if purged, err = repo.Purge(ctx, p.ID); err != nil {
			return err
		}

		if err := s.notifier.RemoveByRelatedEntity(ctx, tx,
			notification.EntityPost, p.ID); err != nil {
			return err
		}

		return s.notifier.RemoveByRelatedEntity(ctx, tx,
			notification.EntityComment, purged.CommentIDs...)
	})
	if err != nil {
		return err
	}

	for _, key := range purged.MediaKeys {
		s.removeObject(ctx, key)
	}
	s.signal(ctx, p.Code)

	return nil
}

func (s *Service) Like(ctx context.Context, actorID, code string) error {
	item, err := s.repo.GetItem(ctx, actorID, code)
	if err != nil {
		return err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx core.DBTX) error {
		inserted, err := s.repo.WithTx(tx).InsertLike(ctx, item.ID, actorID)
		if err != nil {
			return err
		}
		if !inserted {
			return errAlreadyLiked
		}
		return s.notifier.Create(ctx, tx, likeKey(&item.Post, actorID))
	})
	if err != nil {
		return err
	}

	s.signal(ctx, item.Code)
	return nil
}

func (s *Service) Unlike(ctx context.Context, actorID, code string) error {
	p, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx core.DBTX) error {
		removed, err := s.repo.WithTx(tx).DeleteLike(ctx, p.ID, actorID)
		if err != nil {
			return err
		}
		if !removed {
			return errNotLiked
		}
		return s.notifier.Remove(ctx, tx, likeKey(p, actorID))
	})
	if err != nil {
		return err
	}

	s.signal(ctx, p.Code)
	return nil
}

func (s *Service) Save(ctx context.Context, actorID, code string) error {
	item, err := s.repo.GetItem(ctx, actorID, code)
	if err != nil {
		return err
	}

	inserted, err := s.repo.InsertSave(ctx, item.ID, actorID)
	if err != nil {
		return err
	}
	if !inserted {
		return errAlreadySaved
	}
	return nil
}

func (s *Service) Unsave(ctx context.Context, actorID, code string) error {
	p, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return err
	}

	removed, err := s.repo.DeleteSave(ctx, p.ID, actorID)
	if err != nil {
		return err
	}
	if !removed {
		return errNotSaved
	}
	return nil
}

// Get returns a post the viewer may see. Posts hidden from the viewer are
// reported as not found.
func (s *Service) Get(ctx context.Context, viewerID, code string) (*Item, error) {
	item, err := s.repo.GetItem(ctx, viewerID, code)
	if err != nil {
		return nil, err
	}

	items := []Item{*item}
	if err := s.attachMedia(ctx, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

func (s *Service) GetByID(ctx context.Context, viewerID, id string) (*Item, error) {
	item, err := s.repo.GetItemByID(ctx, viewerID, id)
	if err != nil {
		return nil, err
	}

	items := []Item{*item}
	if err := s.attachMedia(ctx, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// Visible resolves a post for another package acting on it, e.g. comments.
func (s *Service) Visible(ctx context.Context, viewerID, code string) (*Item, error) {
	return s.repo.GetItem(ctx, viewerID, code)
}

func (s *Service) List(ctx context.Context, q ListQuery) ([]Item, error) {
	items, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}

	if err := s.attachMedia(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// ListByUser lists username's posts. A private account's posts are only
// listed for its followers.
func (s *Service) ListByUser(
	ctx context.Context,
	viewerID, username string,
	cursor core.Cursor,
) ([]Item, error) {
	ownerID, err := s.repo.FindUserID(ctx, username)
	if err != nil {
		return nil, err
	}

	if err := s.audience.CanViewUser(ctx, viewerID, ownerID); err != nil {
		return nil, err
	}

	return s.List(ctx, ListQuery{
		ViewerID: viewerID,
		Scope:    ScopeAuthor,
		AuthorID: ownerID,
		Cursor:   cursor,
	})
}

// Mention stores the mentions found in text against an entity and notifies
// the mentioned users. The author is never notified of their own mention.
func (s *Service) Mention(
	ctx context.Context,
	tx core.DBTX,
	authorID, text string,
	kind notification.Kind,
	related *notification.Related,
) error {
	return s.mentionIn(ctx, tx, s.repo.WithTx(tx), authorID, text, kind, related)
}

func (s *Service) mention(
	ctx context.Context,
	tx core.DBTX,
	repo Repository,
	p *Post,
) error {
	return s.mentionIn(ctx, tx, repo, p.AuthorID, p.Text,
		notification.KindMentionOnPost, notification.RelatedPost(p.ID))
}

func (s *Service) mentionIn(
	ctx context.Context,
	tx core.DBTX,
	repo Repository,
	authorID, text string,
	kind notification.Kind,
	related *notification.Related,
) error {
	names := ParseMentions(text)
	if len(names) == 0 {
		return nil
	}

	userIDs, err := repo.ResolveUsernames(ctx, names)
	if err != nil {
		return err
	}

	if err := repo.InsertMentions(ctx, string(related.Kind), related.ID, userIDs); err != nil {
		return err
	}

	for _, userID := range userIDs {
		err := s.notifier.Create(ctx, tx, notification.Key{
			ReceiverID: userID,
			ActorID:    authorID,
			Kind:       kind,
			Related:    related,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// Signal tells connected clients that the post's counters changed. It
// fires once the surrounding transaction, if any, has committed.
func (s *Service) Signal(ctx context.Context, code string) {
	s.signal(ctx, code)
}

func (s *Service) insert(ctx context.Context, repo Repository, p *Post) error {
	for range codeAttempts {
		code, err := core.RandomString(CodeLength, core.SlugAlphabet)
		if err != nil {
			return err
		}
		p.Code = code

		ok, err := repo.Insert(ctx, p)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return errCodeExhausted
}

func (s *Service) upload(
	ctx context.Context,
	authorID string,
	files []*multipart.FileHeader,
) ([]*storage.Object, error) {
	objects := make([]*storage.Object, 0, len(files))

	for _, fh := range files {
		obj, err := storage.SaveFormFile(ctx, s.store, fh, storage.UploadRule{
			Prefix:       "posts/" + authorID,
			MaxBytes:     s.cfg.MaxMediaBytes,
			AllowedTypes: storage.MediaTypes,
		})
		if err != nil {
			for _, done := range objects {
				s.removeObject(ctx, done.Key)
			}
			return nil, err
		}
		objects = append(objects, obj)
	}

	return objects, nil
}

func (s *Service) attachMedia(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}

	media, err := s.repo.MediaFor(ctx, ids)
	if err != nil {
		return err
	}

	byPost := make(map[string][]Media, len(items))
	for _, m := range media {
		byPost[m.PostID] = append(byPost[m.PostID], m)
	}
	for i := range items {
		items[i].Media = byPost[items[i].ID]
	}

	return nil
}

func (s *Service) removeObject(ctx context.Context, key string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		slog.WarnContext(ctx, "failed to remove stored object",
			"key", key,
			"error", err,
		)
	}
}

func (s *Service) signal(ctx context.Context, code string) {
	if s.signaler == nil {
		return
	}

	detached := context.WithoutCancel(ctx)
	core.AfterCommit(ctx, func() {
		s.signaler.PostStateChanged(detached, code)
	})
}

func validateText(text string) error {
	if utf8.RuneCountInString(text) > MaxTextLength {
		return errTextTooLong
	}
	return nil
}

func likeKey(p *Post, actorID string) notification.Key {
	return notification.Key{
		ReceiverID: p.AuthorID,
		ActorID:    actorID,
		Kind:       notification.KindPostLike,
		Related:    notification.RelatedPost(p.ID),
	}
}

func shareKey(original *Item, share *Post) notification.Key {
	return notification.Key{
		ReceiverID: original.AuthorID,
		ActorID:    share.AuthorID,
		Kind:       notification.KindPostShare,
		Related:    notification.RelatedPost(share.ID),
	}
}
