// AngelaMos | 2026
// tx.go

// Package coretest holds test doubles for the core persistence helpers.
package coretest

import (
	"context"
	"sync"

	"github.com/rzkfyn/ujikom-app-be/internal/core"
)

// Transactor runs units of work against in-memory repositories. When
// Snapshot is set it is called before each unit and the restore func it
// returns is invoked if the unit fails, emulating a rollback. Units run one
// at a time unless Concurrent is set.
type Transactor struct {
	Snapshot   func() (restore func())
	Concurrent bool

	mu        sync.Mutex
	serial    sync.Mutex
	commits   int
	rollbacks int
}

var _ core.Transactor = (*Transactor)(nil)

func (t *Transactor) WithinTx(
	ctx context.Context,
	fn func(ctx context.Context, tx core.DBTX) error,
) error {
	if !t.Concurrent {
		t.serial.Lock()
		defer t.serial.Unlock()
	}

	var restore func()
	if t.Snapshot != nil {
		restore = t.Snapshot()
	}

	txCtx, commit := core.WithAfterCommit(ctx)

	if err := fn(txCtx, nil); err != nil {
		if restore != nil {
			restore()
		}
		t.mu.Lock()
		t.rollbacks++
		t.mu.Unlock()
		return err
	}

	t.mu.Lock()
	t.commits++
	t.mu.Unlock()

	commit()
	return nil
}

func (t *Transactor) Commits() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.commits
}

func (t *Transactor) Rollbacks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rollbacks
}
