// AngelaMos | 2026
// service.go

package comment

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
	"github.com/rzkfyn/ujikom-app-be/internal/post"
	"github.com/rzkfyn/ujikom-app-be/internal/storage"
)

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

// Posts is the part of the post service comments build on.
type Posts interface {
	Visible(ctx context.Context, viewerID, code string) (*post.Item, error)
	Mention(
		ctx context.Context,
		tx core.DBTX,
		authorID, text string,
		kind notification.Kind,
		related *notification.Related,
	) error
	Signal(ctx context.Context, code string)
}

var (
	errEmptyComment   = core.Detail(core.ErrInvalidInput, "comment must have text or media")
	errTooManyMedia   = core.Detail(core.ErrInvalidInput, fmt.Sprintf("a comment can have at most %d images", MaxMedia))
	errTextTooLong    = core.Detail(core.ErrInvalidInput, fmt.Sprintf("comment must be at most %d characters", MaxTextLength))
	errParentMismatch = core.Detail(core.ErrInvalidInput, "replied comment does not belong to this post")
	errCannotDelete   = core.Detail(core.ErrForbidden, "you do not have permission to delete this comment")
	errAlreadyLiked   = core.Detail(core.ErrAlreadyExists, "you already liked this comment")
	errNotLiked       = core.Detail(core.ErrNotLiked, "you have not liked this comment")
)

type Service struct {
	repo     Repository
	tx       core.Transactor
	notifier Notifier
	posts    Posts
	store    storage.ObjectStore
	cfg      config.ContentConfig
}

func NewService(
	repo Repository,
	tx core.Transactor,
	notifier Notifier,
	posts Posts,
	store storage.ObjectStore,
	cfg config.ContentConfig,
) *Service {
	return &Service{
		repo:     repo,
		tx:       tx,
		notifier: notifier,
		posts:    posts,
		store:    store,
		cfg:      cfg,
	}
}

type CreateInput struct {
	Text             string
	RepliedCommentID *string
	Files            []*multipart.FileHeader
}

// Create comments on a post the author can see. The post author, the author
// of the replied comment and every mentioned user are notified. Attached
// images are uploaded first and removed again if the transaction fails.
func (s *Service) Create(
	ctx context.Context,
	authorID, postCode string,
	in CreateInput,
) (*Item, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && len(in.Files) == 0 {
		return nil, errEmptyComment
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return nil, errTextTooLong
	}
	if len(in.Files) > MaxMedia {
		return nil, errTooManyMedia
	}

	p, err := s.posts.Visible(ctx, authorID, postCode)
	if err != nil {
		return nil, err
	}

	var parent *Target
	if in.RepliedCommentID != nil {
		parent, err = s.repo.Get(ctx, *in.RepliedCommentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != p.ID {
			return nil, errParentMismatch
		}
	}

	objects, err := s.upload(ctx, authorID, in.Files)
	if err != nil {
		return nil, err
	}

	c := &Comment{
		ID:               uuid.New().String(),
		PostID:           p.ID,
		AuthorID:         authorID,
		RepliedCommentID: in.RepliedCommentID,
		Text:             text,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx core.DBTX) error {
		repo := s.repo.WithTx(tx)

		if err := repo.Insert(ctx, c); err != nil {
			return err
		}
		if err := repo.InsertMedia(ctx, mediaRows(c.ID, objects)); err != nil {
			return err
		}

		related := notification.RelatedComment(c.ID)

		if err := s.notifier.Create(ctx, tx, notification.Key{
			ReceiverID: p.AuthorID,
			ActorID:    authorID,
			Kind:       notification.KindPostComment,
			Related:    related,
		}); err != nil {
			return err
		}

		if parent != nil {
			if err := s.notifier.Create(ctx, tx, notification.Key{
				ReceiverID: parent.AuthorID,
				ActorID:    authorID,
				Kind:       notification.KindCommentReply,
				Related:    related,
			}); err != nil {
				return err
			}
		}

		if err := s.posts.Mention(ctx, tx, authorID, text,
			notification.KindMentionOnComment, related); err != nil {
			return err
		}

		s.posts.Signal(ctx, p.Code)
		return nil
	})
	if err != nil {
		for _, obj := range objects {
			s.removeObject(ctx, obj.Key)
		}
		return nil, err
	}

	item, err := s.repo.GetItem(ctx, authorID, c.ID)
	if err != nil {
		return nil, err
	}

	items := []Item{*item}
	if err := s.attachMedia(ctx, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// List pages the comments on a post. Anonymous viewers only get the first
// page, capped at the configured preview size.
func (s *Service) List(
	ctx context.Context,
	viewerID, postCode string,
	cursor core.Cursor,
) ([]Item, error) {
	p, err := s.posts.Visible(ctx, viewerID, postCode)
	if err != nil {
		return nil, err
	}

	if viewerID == "" {
		cursor.Before, cursor.BeforeID = nil, ""
		if preview := s.cfg.AnonymousComments; preview > 0 && cursor.Limit > preview {
			cursor.Limit = preview
		}
	}

	items, err := s.repo.List(ctx, ListQuery{
		PostID:   p.ID,
		ViewerID: viewerID,
		Cursor:   cursor,
	})
	if err != nil {
		return nil, err
	}

	if err := s.attachMedia(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes a comment and the notifications that refer to it. The
// comment author and the post author may delete it. Stored images are
// removed once the deletion has committed.
func (s *Service) Delete(ctx context.Context, actorID, commentID string) error {
	t, err := s.repo.Get(ctx, commentID)
	if err != nil {
		return err
	}
	if actorID != t.AuthorID && actorID != t.PostAuthorID {
		return errCannotDelete
	}

	var keys []string
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx core.DBTX) error {
		repo := s.repo.WithTx(tx)

		if err := repo.SoftDelete(ctx, t.ID); err != nil {
			return err
		}

		var err error
		if keys, err = repo.Purge(ctx, t.ID); err != nil {
			return err
		}
		if err := s.notifier.RemoveByRelatedEntity(ctx, tx,
			notification.EntityComment, t.ID); err != nil {
			return err
		}

		s.posts.Signal(ctx, t.PostCode)
		return nil
	})
	if err != nil {
		return err
	}

	for _, key := range keys {
		s.removeObject(ctx, key)
	}
	return nil
}

func (s *Service) Like(ctx context.Context, actorID, commentID string) error {
	t, err := s.visible(ctx, actorID, commentID)
	if err != nil {
		return err
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context, tx core.DBTX) error {
		inserted, err := s.repo.WithTx(tx).InsertLike(ctx, t.ID, actorID)
		if err != nil {
			return err
		}
		if !inserted {
			return errAlreadyLiked
		}
		if err := s.notifier.Create(ctx, tx, likeKey(t, actorID)); err != nil {
			return err
		}

		s.posts.Signal(ctx, t.PostCode)
		return nil
	})
}

func (s *Service) Unlike(ctx context.Context, actorID, commentID string) error {
	t, err := s.repo.Get(ctx, commentID)
	if err != nil {
		return err
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context, tx core.DBTX) error {
		removed, err := s.repo.WithTx(tx).DeleteLike(ctx, t.ID, actorID)
		if err != nil {
			return err
		}
		if !removed {
			return errNotLiked
		}
		if err := s.notifier.Remove(ctx, tx, likeKey(t, actorID)); err != nil {
			return err
		}

		s.posts.Signal(ctx, t.PostCode)
		return nil
	})
}

// visible resolves a comment whose post the viewer can see.
func (s *Service) visible(ctx context.Context, viewerID, commentID string) (*Target, error) {
	t, err := s.repo.Get(ctx, commentID)
	if err != nil {
		return nil, err
	}

	if _, err := s.posts.Visible(ctx, viewerID, t.PostCode); err != nil {
		return nil, err
	}

	return t, nil
}

func (s *Service) upload(
	ctx context.Context,
	authorID string,
	files []*multipart.FileHeader,
) ([]*storage.Object, error) {
	objects := make([]*storage.Object, 0, len(files))

	for _, fh := range files {
		obj, err := storage.SaveFormFile(ctx, s.store, fh, storage.UploadRule{
			Prefix:       "comments/" + authorID,
			MaxBytes:     s.cfg.MaxImageBytes,
			AllowedTypes: storage.ImageTypes,
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

	byComment := make(map[string][]Media, len(items))
	for _, m := range media {
		byComment[m.CommentID] = append(byComment[m.CommentID], m)
	}
	for i := range items {
		items[i].Media = byComment[items[i].ID]
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

func mediaRows(commentID string, objects []*storage.Object) []Media {
	media := make([]Media, 0, len(objects))
	for i, obj := range objects {
		media = append(media, Media{
			ID:          uuid.New().String(),
			CommentID:   commentID,
			ObjectKey:   obj.Key,
			URL:         obj.URL,
			ContentType: obj.ContentType,
			SizeBytes:   obj.Size,
			Position:    i,
		})
	}
	return media
}

func likeKey(t *Target, actorID string) notification.Key {
	return notification.Key{
		ReceiverID: t.AuthorID,
		ActorID:    actorID,
		Kind:       notification.KindCommentLike,
		Related:    notification.RelatedComment(t.ID),
	}
}
