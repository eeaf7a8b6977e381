// AngelaMos | 2026
// recorder.go

// Package notificationtest provides an in-memory notifier for services that
// produce notifications.
package notificationtest

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/rzkfyn/ujikom-app-be/internal/core"
	"github.com/rzkfyn/ujikom-app-be/internal/notification"
)

var ErrUnavailable = errors.New("notification store unavailable")

type entry struct {
	receiver string
	actor    string
	kind     notification.Kind
	relKind  notification.EntityKind
	relID    string
}

func toEntry(key notification.Key) entry {
	e := entry{receiver: key.ReceiverID, actor: key.ActorID, kind: key.Kind}
	if key.Related != nil {
		e.relKind = key.Related.Kind
		e.relID = key.Related.ID
	}
	return e
}

// Recorder keeps the set of live notifications. It applies the same
// self-notification rule as the real service. Create fails for FailOn.
type Recorder struct {
	FailOn notification.Kind

	mu   sync.Mutex
	live map[entry]bool
}

func NewRecorder() *Recorder {
	return &Recorder{live: make(map[entry]bool)}
}

func (r *Recorder) Create(_ context.Context, _ core.DBTX, key notification.Key) error {
	if key.ReceiverID == key.ActorID {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailOn != "" && key.Kind == r.FailOn {
		return ErrUnavailable
	}
	r.live[toEntry(key)] = true
	return nil
}

func (r *Recorder) Remove(_ context.Context, _ core.DBTX, key notification.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.live, toEntry(key))
	return nil
}

func (r *Recorder) RemoveBetween(
	_ context.Context,
	_ core.DBTX,
	a, b string,
	kinds ...notification.Kind,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for e := range r.live {
		between := (e.receiver == a && e.actor == b) || (e.receiver == b && e.actor == a)
		if between && slices.Contains(kinds, e.kind) {
			delete(r.live, e)
		}
	}
	return nil
}

func (r *Recorder) RemoveByRelatedEntity(
	_ context.Context,
	_ core.DBTX,
	kind notification.EntityKind,
	ids ...string,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for e := range r.live {
		if e.relKind == kind && slices.Contains(ids, e.relID) {
			delete(r.live, e)
		}
	}
	return nil
}

// Snapshot captures the live set; the returned func restores it.
func (r *Recorder) Snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	live := maps.Clone(r.live)
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.live = live
	}
}

func (r *Recorder) IsLive(key notification.Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live[toEntry(key)]
}

// Has reports a live notification without a related entity.
func (r *Recorder) Has(receiver, actor string, kind notification.Kind) bool {
	return r.IsLive(notification.Key{ReceiverID: receiver, ActorID: actor, Kind: kind})
}

func (r *Recorder) LiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// CountKind counts live notifications of kind.
func (r *Recorder) CountKind(kind notification.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for e := range r.live {
		if e.kind == kind {
			n++
		}
	}
	return n
}
