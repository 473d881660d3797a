package store

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

type (
	txKey    struct{}
	hooksKey struct{}
)

type commitHooks struct {
	mu  sync.Mutex
	fns []func()
}

// Transactor implements auth.Transactor on top of gorm. The active transaction is
// stored in the context so repositories called with that context participate in it.
type Transactor struct {
	db *gorm.DB
}

// NewTransactor creates a Transactor backed by db.
func NewTransactor(db *gorm.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTransaction begins a transaction and calls fn with a context carrying it.
// The transaction commits when fn returns nil and rolls back otherwise. Nested calls
// reuse the outer transaction. Hooks registered with AfterCommit run once the
// outermost transaction commits.
func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}

	hooks := &commitHooks{}
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, txKey{}, tx)
		return fn(context.WithValue(txCtx, hooksKey{}, hooks))
	})
	if err != nil {
		return err
	}

	hooks.mu.Lock()
	fns := hooks.fns
	hooks.fns = nil
	hooks.mu.Unlock()
	for _, hook := range fns {
		hook()
	}
	return nil
}

// AfterCommit defers fn until the transaction carried by ctx commits. Without a
// transaction fn runs immediately; on rollback it never runs.
func (t *Transactor) AfterCommit(ctx context.Context, fn func()) {
	if ctx != nil {
		if hooks, ok := ctx.Value(hooksKey{}).(*commitHooks); ok {
			hooks.mu.Lock()
			hooks.fns = append(hooks.fns, fn)
			hooks.mu.Unlock()
			return
		}
	}
	fn()
}

// conn returns the transaction carried by ctx, or db bound to ctx.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if ctx == nil {
		ctx = context.Background()
	}
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}
