package testutil

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"

	"github.com/leasingborsen/listing-reconciler/internal/data/aggregates"
	"github.com/leasingborsen/listing-reconciler/internal/platform/dbctx"
)

// InjectedTxRunner injects begin/body/commit failures around an aggregate write.
// With DB set the body runs in a real transaction and an injected commit
// failure rolls it back, so tests can assert nothing was persisted.
type InjectedTxRunner struct {
	mu sync.Mutex

	DB *gorm.DB

	FailBegin      error
	FailBeforeBody error
	FailCommit     error

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	failBegin, failBeforeBody, failCommit := r.FailBegin, r.FailBeforeBody, r.FailCommit
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}
	if failBeforeBody != nil {
		r.count(&r.RollbackCalls)
		return failBeforeBody
	}
	if fn == nil {
		r.count(&r.CommitCalls)
		return nil
	}

	var err error
	if r.DB != nil {
		err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if bodyErr := fn(dbctx.Context{Ctx: ctx, Tx: tx}); bodyErr != nil {
				return bodyErr
			}
			return failCommit
		})
	} else {
		err = fn(dbctx.Context{Ctx: ctx})
		if err == nil {
			err = failCommit
		}
	}
	if err != nil {
		r.count(&r.RollbackCalls)
		return err
	}
	r.count(&r.CommitCalls)
	return nil
}

func (r *InjectedTxRunner) count(c *int) {
	r.mu.Lock()
	*c++
	r.mu.Unlock()
}

// ErrInjectedCommit is a ready-made commit failure.
var ErrInjectedCommit = errors.New("injected commit failure")
