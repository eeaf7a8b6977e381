// AngelaMos | 2026
// service.go

package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rzkfyn/ujikom-app-be/internal/core"
	"github.com/rzkfyn/ujikom-app-be/internal/user"
)

// Signaler is told when a user's notification set changed. The realtime
// relay implements it.
type Signaler interface {
	NotificationChanged(ctx context.Context, userID string)
}

var _ user.NotificationRetractor = (*Service)(nil)

type Service struct {
	repo     Repository
	signaler Signaler
}

func NewService(repo Repository, signaler Signaler) *Service {
	return &Service{
		repo:     repo,
		signaler: signaler,
	}
}

// Create records the notification described by key inside tx, or outside
// any transaction when tx is nil. A user acting on themselves is never
// notified. The receiver is signalled once the transaction commits.
func (s *Service) Create(ctx context.Context, tx core.DBTX, key Key) error {
	if key.ReceiverID == key.ActorID {
		return nil
	}

	relKind, relID := relatedColumns(key.Related)

	n := &Notification{
		ID:                uuid.New().String(),
		ReceiverID:        key.ReceiverID,
		ActorID:           key.ActorID,
		Kind:              key.Kind,
		RelatedEntityKind: relKind,
		RelatedEntityID:   relID,
	}

	if err := s.bind(tx).Insert(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	s.signal(ctx, key.ReceiverID)
	return nil
}

// Remove retracts the notification Create(key) produced. Removing a
// notification that does not exist is not an error.
func (s *Service) Remove(ctx context.Context, tx core.DBTX, key Key) error {
	if key.ReceiverID == key.ActorID {
		return nil
	}

	removed, err := s.bind(tx).Remove(ctx, key)
	if err != nil {
		return fmt.Errorf("remove notification: %w", err)
	}

	if removed {
		s.signal(ctx, key.ReceiverID)
	}
	return nil
}

// RemoveByRelatedEntity retracts every notification pointing at the given
// posts or comments.
func (s *Service) RemoveByRelatedEntity(
	ctx context.Context,
	tx core.DBTX,
	kind EntityKind,
	ids ...string,
) error {
	receivers, err := s.bind(tx).RemoveByRelatedEntities(ctx, kind, ids)
	if err != nil {
		return err
	}

	s.signalAll(ctx, receivers)
	return nil
}

// RemoveBetween retracts notifications of the given kinds exchanged between
// a and b in either direction.
func (s *Service) RemoveBetween(
	ctx context.Context,
	tx core.DBTX,
	a, b string,
	kinds ...Kind,
) error {
	if len(kinds) == 0 {
		return nil
	}

	receivers, err := s.bind(tx).RemoveBetween(ctx, a, b, kinds)
	if err != nil {
		return err
	}

	s.signalAll(ctx, receivers)
	return nil
}

// RemoveInvolving retracts every live notification userID fired or
// received. The other receivers are signalled after commit.
func (s *Service) RemoveInvolving(ctx context.Context, tx core.DBTX, userID string) error {
	receivers, err := s.bind(tx).RemoveInvolving(ctx, userID)
	if err != nil {
		return err
	}

	others := make([]string, 0, len(receivers))
	for _, id := range receivers {
		if id != userID {
			others = append(others, id)
		}
	}
	s.signalAll(ctx, others)
	return nil
}

func (s *Service) MarkAllSeen(ctx context.Context, receiverID string) error {
	n, err := s.repo.MarkAllSeen(ctx, receiverID)
	if err != nil {
		return err
	}

	if n > 0 {
		s.signal(ctx, receiverID)
	}
	return nil
}

type Page struct {
	Items      []Response
	Unseen     int
	NextCursor string
}

// List returns the receiver's notifications newest first.
func (s *Service) List(
	ctx context.Context,
	receiverID string,
	cursor core.Cursor,
) (*Page, error) {
	items, err := s.repo.List(ctx, receiverID, cursor)
	if err != nil {
		return nil, err
	}

	unseen, err := s.repo.CountUnseen(ctx, receiverID)
	if err != nil {
		return nil, err
	}

	page := &Page{
		Items:  toResponseList(items),
		Unseen: unseen,
	}
	if len(items) > 0 {
		page.NextCursor = core.NextCursor(
			len(items),
			cursor.Limit,
			items[len(items)-1].CreatedAt,
			items[len(items)-1].ID,
		)
	}

	return page, nil
}

func (s *Service) UnseenCount(ctx context.Context, receiverID string) (int, error) {
	return s.repo.CountUnseen(ctx, receiverID)
}

// Delete lets a receiver dismiss one of their notifications.
func (s *Service) Delete(ctx context.Context, receiverID, id string) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if n.ReceiverID != receiverID {
		return fmt.Errorf("delete notification: %w",
			core.Detail(core.ErrForbidden, "cannot delete another user's notification"))
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}

	s.signal(ctx, receiverID)
	return nil
}

func (s *Service) bind(tx core.DBTX) Repository {
	if tx == nil {
		return s.repo
	}
	return s.repo.WithTx(tx)
}

func (s *Service) signal(ctx context.Context, userID string) {
	if s.signaler == nil {
		return
	}

	detached := context.WithoutCancel(ctx)
	core.AfterCommit(ctx, func() {
		s.signaler.NotificationChanged(detached, userID)
	})
}

func (s *Service) signalAll(ctx context.Context, userIDs []string) {
	seen := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		s.signal(ctx, id)
	}
}
