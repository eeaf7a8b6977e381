// AngelaMos | 2026
// tx.go

package core

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Transactor runs a unit of work inside one database transaction. The
// callback receives a context carrying the after-commit hook list and the
// transaction handle that repositories rebind onto via WithTx.
type Transactor interface {
	WithinTx(
		ctx context.Context,
		fn func(ctx context.Context, tx DBTX) error,
	) error
}

type SQLTransactor struct {
	db *sqlx.DB
}

func NewTransactor(db *sqlx.DB) *SQLTransactor {
	return &SQLTransactor{db: db}
}

// WithinTx runs fn in a transaction and, once it commits, the hooks fn
// registered with AfterCommit. Failed transactions are not retried.
func (t *SQLTransactor) WithinTx(
	ctx context.Context,
	fn func(ctx context.Context, tx DBTX) error,
) error {
	txCtx, commit := WithAfterCommit(ctx)

	err := InTx(txCtx, t.db, func(tx *sqlx.Tx) error {
		return fn(txCtx, tx)
	})
	if err != nil {
		if IsTxConflict(err) {
			slog.WarnContext(ctx, "transaction aborted by a concurrent writer",
				"error", err,
			)
		}
		return err
	}

	commit()
	return nil
}

type afterCommitKey struct{}

type afterCommitHooks struct {
	mu  sync.Mutex
	fns []func()
}

func (h *afterCommitHooks) add(fn func()) {
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

func (h *afterCommitHooks) run() {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// WithAfterCommit attaches an empty hook list to ctx. The returned func runs
// the registered hooks once; callers invoke it only after a successful commit.
func WithAfterCommit(ctx context.Context) (context.Context, func()) {
	hooks := &afterCommitHooks{}
	return context.WithValue(ctx, afterCommitKey{}, hooks), hooks.run
}

// AfterCommit defers fn until the surrounding transaction commits. Outside a
// transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	if hooks, ok := ctx.Value(afterCommitKey{}).(*afterCommitHooks); ok {
		hooks.add(fn)
		return
	}
	fn()
}
