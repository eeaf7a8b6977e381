// AngelaMos | 2026
// service.go

package graph

import (
	"context"
	"fmt"

	"github.com/rzkfyn/ujikom-app-be/internal/core"
	"github.com/rzkfyn/ujikom-app-be/internal/notification"
	"github.com/rzkfyn/ujikom-app-be/internal/user"
)

// Notifier records and retracts the notifications graph edges produce.
// Calls join the caller's transaction through tx.
type Notifier interface {
	Create(ctx context.Context, tx core.DBTX, key notification.Key) error
	Remove(ctx context.Context, tx core.DBTX, key notification.Key) error
	RemoveBetween(
		ctx context.Context,
		tx core.DBTX,
		a, b string,
		kinds ...notification.Kind,
	) error
}

var _ user.RelationshipReader = (*Service)(nil)

type Service struct {
	repo     Repository
	tx       core.Transactor
	notifier Notifier
}

func NewService(
	repo Repository,
	tx core.Transactor,
	notifier Notifier,
) *Service {
	return &Service{
		repo:     repo,
		tx:       tx,
		notifier: notifier,
	}
}

var (
	errSelfFollow   = core.Detail(core.ErrInvalidOperation, "cannot follow yourself")
	errSelfUnfollow = core.Detail(core.ErrInvalidOperation, "cannot unfollow yourself")
	errSelfBlock    = core.Detail(core.ErrInvalidOperation, "cannot block yourself")
	errSelfUnblock  = core.Detail(core.ErrInvalidOperation, "cannot unblock yourself")
	errSelfRemove   = core.Detail(core.ErrInvalidOperation, "cannot remove yourself as a follower")
	errBlocked      = core.Detail(core.ErrInvalidOperation, "cannot follow this user")
	errPrivateList  = core.Detail(core.ErrForbidden, "this account is private")
)

// Follow makes actorID follow username. A private target receives a follow
// request instead of an edge. Any stale request towards a public target is
// turned into the edge so a pair never holds both.
func (s *Service) Follow(
	ctx context.Context,
	actorID, username string,
) (FollowStatus, error) {
	var status FollowStatus

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx core.DBTX) error {
		repo := s.repo.WithTx(tx)

		target, err := repo.FindTarget(ctx, username)
		if err != nil {
			return err
		}

		if target.ID == actorID {
			return errSelfFollow
		}

		blocked, err := repo.IsBlockedEither(ctx, actorID, target.ID)
		if err != nil {
			return err
		}
		if blocked {
			return errBlocked
		}

		following, err := repo.IsFollowing(ctx, actorID, target.ID)
		if err != nil {
			return err
		}
		if following {
			return errAlreadyFollowing
		}

		if target.IsPrivate() {
			status = StatusRequested
			return s.request(ctx, tx, repo, actorID, target.ID)
		}

		status = StatusFollowing
		return s.follow(ctx, tx, repo, actorID, target.ID)
	})
	if err != nil {
		return "", fmt.Errorf("follow: %w", err)
	}

	return status, nil
}

func (s *Service) request(
	ctx context.Context,
	tx core.DBTX,
	repo Repository,
	actorID, targetID string,
) error {
	pending, err := repo.HasRequest(ctx, actorID, targetID)
	if err != nil {
		return err
	}
	if pending {
		return errAlreadyRequested
	}

	if err := repo.InsertRequest(ctx, actorID, targetID); err != nil {
		return err
	}

	return s.notifier.Create(ctx, tx, notification.Key{
		ReceiverID: targetID,
		ActorID:    actorID,
		Kind:       notification.KindUserFollowRequest,
	})
}

func (s *Service) follow(
	ctx context.Context,
	tx core.DBTX,
	repo Repository,
	actorID, targetID string,
) error {
	stale, err := repo.DeleteRequest(ctx, actorID, targetID)
	if err != nil {
		return err
	}
	if stale {
		if err := s.notifier.Remove(ctx, tx, requestKey(actorID, targetID)); err != nil {
			return err
		}
	}

	if err := repo.InsertFollow(ctx, actorID, targetID); err != nil {
		return err
	}

	return s.notifier.Create(ctx, tx, followKey(actorID, targetID))
}

func (s *Service) Unfollow(ctx context.Context, actorID, username string) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx core.DBTX) error {
		repo := s.repo.WithTx(tx)

		target, err := repo.FindTarget(ctx, username)
		if err != nil {
			return err
		}

		if target.ID == actorID {
			return errSelfUnfollow
		}

		return s.dropFollow(ctx, tx, repo, actorID, target.ID)
	})
	if err != nil {
		return fmt.Errorf("unfollow: %w", err)
	}

	return nil
}

// RemoveFollower deletes the edge followerUsername -> ownerID.
func (s *Service) RemoveFollower(
	ctx context.Context,
	ownerID, followerUsername string,
) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx core.DBTX) error {
		repo := s.repo.WithTx(tx)

		follower, err := repo.FindTarget(ctx, followerUsername)
		if err != nil {
			return err
		}

		if follower.ID == ownerID {
			return errSelfRemove
		}

		return s.dropFollow(ctx, tx, repo, follower.ID, ownerID)
	})
	if err != nil {
		return fmt.Errorf("remove follower: %w", err)
	}

	return nil
}

// dropFollow removes the edge followerID -> followeeID together with every
// notification that edge produced.
func (s *Service) dropFollow(
	ctx context.Context,
	tx core.DBTX,
	repo Repository,
	followerID, followeeID string,
) error {
	removed, err := repo.DeleteFollow(ctx, followerID, followeeID)
	if err != nil {
		return err
	}
	if !removed {
		return core.ErrNotFollowing
	}

	if err := s.notifier.Remove(ctx, tx, followKey(followerID, followeeID)); err != nil {
		return err
	}

	return s.notifier.Remove(ctx, tx, acceptedKey(followerID, followeeID))
}

// AcceptFollowRequest turns the request requesterUsername -> ownerID into
// a follow edge.
func (s *Service) AcceptFollowRequest(
	ctx context.Context,
	ownerID, requesterUsername string,
) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx core.DBTX) error {
		repo := s.repo.WithTx(tx)

		requester, err := s.consumeRequest(ctx, tx, repo, requesterUsername, ownerID, true)
		if err != nil {
			return err
		}

		if err := repo.InsertFollow(ctx, requester, ownerID); err != nil {
			return err
		}

		return s.notifier.Create(ctx, tx, acceptedKey(requester, ownerID))
	})
	if err != nil {
		return fmt.Errorf("accept follow request: %w", err)
	}

	return nil
}

func (s *Service) RejectFollowRequest(
	ctx context.Context,
	ownerID, requesterUsername string,
) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx core.DBTX) error {
		_, err := s.consumeRequest(ctx, tx, s.repo.WithTx(tx), requesterUsername, ownerID, true)
		return err
	})
	if err != nil {
		return fmt.Errorf("reject follow request: %w", err)
	}

	return nil
}

// CancelFollowRequest withdraws the request actorID sent to username.
func (s *Service) CancelFollowRequest(
	ctx context.Context,
	actorID, username string,
) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx core.DBTX) error {
		_, err := s.consumeRequest(ctx, tx, s.repo.WithTx(tx), username, actorID, false)
		return err
	})
	if err != nil {
		return fmt.Errorf("cancel follow request: %w", err)
	}

	return nil
}

// consumeRequest deletes the pending request between the user called
// username and userID along with its notification, and returns the
// requester's id. incoming selects which of the two sent the request.
func (s *Service) consumeRequest(
	ctx context.Context,
	tx core.DBTX,
	repo Repository,
	username, userID string,
	incoming bool,
) (string, error) {
	other, err := repo.FindTarget(ctx, username)
	if err != nil {
		return "", err
	}

	requesterID, requestedID := other.ID, userID
	if !incoming {
		requesterID, requestedID = userID, other.ID
	}

	removed, err := repo.DeleteRequest(ctx, requesterID, requestedID)
	if err != nil {
		return "", err
	}
	if !removed {
		return "", core.ErrRequestNotFound
	}

	if err := s.notifier.Remove(ctx, tx, requestKey(requesterID, requestedID)); err != nil {
		return "", err
	}

	return requesterID, nil
}

// Block records actorID blocking username and severs every follow edge and
// pending request between the two, in both directions.
func (s *Service) Block(ctx context.Context, actorID, username string) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx core.DBTX) error {
		repo := s.repo.WithTx(tx)

		target, err := repo.FindTarget(ctx, username)
		if err != nil {
			return err
		}

		if target.ID == actorID {
			return errSelfBlock
		}

		blocking, err := repo.IsBlocking(ctx, actorID, target.ID)
		if err != nil {
			return err
		}
		if blocking {
			return core.ErrAlreadyBlocked
		}

		if err := repo.InsertBlock(ctx, actorID, target.ID); err != nil {
			return err
		}

		pairs := [][2]string{{actorID, target.ID}, {target.ID, actorID}}
		for _, p := range pairs {
			if _, err := repo.DeleteFollow(ctx, p[0], p[1]); err != nil {
				return err
			}
			if _, err := repo.DeleteRequest(ctx, p[0], p[1]); err != nil {
				return err
			}
		}

		return s.notifier.RemoveBetween(ctx, tx, actorID, target.ID, notification.GraphKinds...)
	})
	if err != nil {
		return fmt.Errorf("block: %w", err)
	}

	return nil
}

// Unblock removes the block edge only. Severed follows stay severed.
func (s *Service) Unblock(ctx context.Context, actorID, username string) error {
	target, err := s.repo.FindTarget(ctx, username)
	if err != nil {
		return fmt.Errorf("unblock: %w", err)
	}

	if target.ID == actorID {
		return fmt.Errorf("unblock: %w", errSelfUnblock)
	}

	removed, err := s.repo.DeleteBlock(ctx, actorID, target.ID)
	if err != nil {
		return fmt.Errorf("unblock: %w", err)
	}
	if !removed {
		return fmt.Errorf("unblock: %w", core.ErrNotBlocked)
	}

	return nil
}

// GetConnections lists the followers or followees of username as seen by
// viewerID, which is empty for anonymous viewers.
func (s *Service) GetConnections(
	ctx context.Context,
	viewerID, username string,
	dir Direction,
) ([]user.Summary, error) {
	owner, err := s.readable(ctx, viewerID, username)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", dir, err)
	}

	return s.repo.ListConnections(ctx, owner.ID, dir)
}

// GetMutualConnections returns the users who both follow username and are
// followed by them.
func (s *Service) GetMutualConnections(
	ctx context.Context,
	viewerID, username string,
) ([]user.Summary, error) {
	owner, err := s.readable(ctx, viewerID, username)
	if err != nil {
		return nil, fmt.Errorf("get mutuals: %w", err)
	}

	followers, err := s.repo.ListConnections(ctx, owner.ID, DirectionFollowers)
	if err != nil {
		return nil, err
	}

	following, err := s.repo.ListConnections(ctx, owner.ID, DirectionFollowing)
	if err != nil {
		return nil, err
	}

	followed := make(map[string]struct{}, len(following))
	for _, u := range following {
		followed[u.ID] = struct{}{}
	}

	mutuals := make([]user.Summary, 0)
	for _, u := range followers {
		if _, ok := followed[u.ID]; ok {
			mutuals = append(mutuals, u)
		}
	}

	return mutuals, nil
}

func (s *Service) readable(
	ctx context.Context,
	viewerID, username string,
) (*Target, error) {
	owner, err := s.repo.FindTarget(ctx, username)
	if err != nil {
		return nil, err
	}

	if err := s.CanView(ctx, viewerID, owner); err != nil {
		return nil, err
	}

	return owner, nil
}

// CanView reports whether viewerID may see the activity of owner. A block
// in either direction hides the owner entirely; a private owner is visible
// only to themselves and their followers.
func (s *Service) CanView(ctx context.Context, viewerID string, owner *Target) error {
	if viewerID == owner.ID {
		return nil
	}

	if viewerID != "" {
		blocked, err := s.repo.IsBlockedEither(ctx, viewerID, owner.ID)
		if err != nil {
			return err
		}
		if blocked {
			return core.Detail(core.ErrNotFound, "user not found")
		}
	}

	if !owner.IsPrivate() {
		return nil
	}

	if viewerID != "" {
		following, err := s.repo.IsFollowing(ctx, viewerID, owner.ID)
		if err != nil {
			return err
		}
		if following {
			return nil
		}
	}

	return errPrivateList
}

// CanViewUser is CanView for callers that only hold the owner's id.
func (s *Service) CanViewUser(ctx context.Context, viewerID, ownerID string) error {
	owner, err := s.repo.GetTarget(ctx, ownerID)
	if err != nil {
		return err
	}
	return s.CanView(ctx, viewerID, owner)
}

func (s *Service) ListFollowRequests(
	ctx context.Context,
	userID string,
	incoming bool,
) ([]RequestItem, error) {
	return s.repo.ListRequests(ctx, userID, incoming)
}

func (s *Service) ListBlocked(
	ctx context.Context,
	userID string,
) ([]user.Summary, error) {
	return s.repo.ListBlocked(ctx, userID)
}

// Relationship implements user.RelationshipReader.
func (s *Service) Relationship(
	ctx context.Context,
	viewerID, targetID string,
) (*user.Relationship, error) {
	var (
		rel user.Relationship
		err error
	)

	if rel.IsFollowing, err = s.repo.IsFollowing(ctx, viewerID, targetID); err != nil {
		return nil, err
	}
	if rel.IsFollowedBy, err = s.repo.IsFollowing(ctx, targetID, viewerID); err != nil {
		return nil, err
	}
	if rel.HasRequested, err = s.repo.HasRequest(ctx, viewerID, targetID); err != nil {
		return nil, err
	}
	if rel.IsBlocking, err = s.repo.IsBlocking(ctx, viewerID, targetID); err != nil {
		return nil, err
	}
	if rel.IsBlockedBy, err = s.repo.IsBlocking(ctx, targetID, viewerID); err != nil {
		return nil, err
	}

	return &rel, nil
}

func (s *Service) ConnectionCounts(
	ctx context.Context,
	userID string,
) (int, int, error) {
	return s.repo.CountConnections(ctx, userID)
}

func followKey(followerID, followeeID string) notification.Key {
	return notification.Key{
		ReceiverID: followeeID,
		ActorID:    followerID,
		Kind:       notification.KindUserFollow,
	}
}

func requestKey(requesterID, requestedID string) notification.Key {
	return notification.Key{
		ReceiverID: requestedID,
		ActorID:    requesterID,
		Kind:       notification.KindUserFollowRequest,
	}
}

func acceptedKey(requesterID, ownerID string) notification.Key {
	return notification.Key{
		ReceiverID: requesterID,
		ActorID:    ownerID,
		Kind:       notification.KindUserFollowRequestAccepted,
	}
}
