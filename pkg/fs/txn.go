package fs

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/grainfs/grainfs/pkg/kv"

	"github.com/grainfs/grainfs/internal/logger"
)

// Transaction Coordinator
// =======================
//
// Every multi-key mutation in the filesystem goes through Run. The contract:
//
//   - Run begins a backend transaction, executes the unit of work, and
//     commits. The unit sees a consistent snapshot.
//   - When commit fails with a conflict, the entire unit re-runs from
//     scratch against a fresh snapshot, up to MaxRetries attempts with
//     randomized exponential backoff. Prior reads are discarded along with
//     the transaction, so a retried unit never acts on stale data.
//   - Units must be repeatable: no externally visible side effect until
//     after a successful commit. The one shared structure the core mutates,
//     the cache, keeps this rule by staging updates per-transaction and
//     publishing them only after commit (see cache.go).
//   - Nested Run calls reuse the caller's open transaction, so a compound
//     operation (rename touching two directories plus a link count) commits
//     as a single atomic unit. Only the outermost frame commits.
//
// No in-process lock is held across backend I/O anywhere in the core; all
// cross-request serialization is delegated to the backend's commit-time
// conflict detection plus this retry loop.

// Retry policy constants. Explicit and documented rather than tunable knobs:
// the base doubles per attempt up to the cap, and each sleep is scaled by a
// random factor in [0.5, 1.5) to spread out herds of conflicting retries.
const (
	retryBackoffBase = 10 * time.Millisecond
	retryBackoffCap  = 500 * time.Millisecond
)

// DefaultMaxRetries bounds transaction attempts when the mount configuration
// does not specify a limit.
const DefaultMaxRetries = 10

// Txn is one open filesystem transaction: the backend transaction plus the
// staged cache updates that will be published if it commits.
//
// A Txn is confined to the unit of work that Run handed it to; it is not
// safe for concurrent use.
type Txn struct {
	kv       kv.Txn
	fs       *FileSystem
	stage    *txnStage
	writable bool

	// Cache publish sequences sampled before the backend snapshot was
	// taken. Read-miss population passes them to putIfAbsent; a commit
	// published after the sample voids the population.
	inodeVersion uint64
	blockVersion uint64
}

// txnCtxKey carries the active Txn through the context so nested Run calls
// join it instead of opening a second transaction.
type txnCtxKey struct{}

func activeTxn(ctx context.Context) *Txn {
	tx, _ := ctx.Value(txnCtxKey{}).(*Txn)
	return tx
}

// Run executes fn inside a transaction, committing on success and retrying
// the whole unit on backend conflicts.
//
// If ctx already carries an open transaction, fn joins it: the nested frame
// neither commits nor retries, and its errors propagate to the outermost
// frame, which owns the commit. Context cancellation is honored between
// attempts; an in-flight attempt is allowed to finish or abort normally.
func (fsys *FileSystem) Run(ctx context.Context, update bool, fn func(ctx context.Context, tx *Txn) error) error {
	if tx := activeTxn(ctx); tx != nil {
		return fn(ctx, tx)
	}

	maxAttempts := fsys.maxRetries
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fsys.runOnce(ctx, update, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, kv.ErrConflict) {
			return mapBackendError(err)
		}
		if attempt+1 >= maxAttempts {
			return &Error{
				Code:    ErrConflictExhausted,
				Message: fmt.Sprintf("transaction aborted after %d conflicting attempts", maxAttempts),
			}
		}

		backoff := retryBackoff(attempt)
		logger.Debug("transaction conflict, retrying (attempt %d/%d, backoff %v)",
			attempt+1, maxAttempts, backoff)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// runOnce performs a single attempt: begin, run, commit, publish staged
// cache entries. Any error discards the transaction and its stage.
func (fsys *FileSystem) runOnce(ctx context.Context, update bool, fn func(ctx context.Context, tx *Txn) error) error {
	// Sample before Begin: a commit that postdates the snapshot then also
	// postdates the sample, so its publish invalidates our populations.
	inodeVersion := fsys.caches.inodes.version()
	blockVersion := fsys.caches.blocks.version()

	inner, err := fsys.store.Begin(update)
	if err != nil {
		return err
	}

	tx := &Txn{
		kv:           inner,
		fs:           fsys,
		stage:        newTxnStage(),
		writable:     update,
		inodeVersion: inodeVersion,
		blockVersion: blockVersion,
	}
	txCtx := context.WithValue(ctx, txnCtxKey{}, tx)

	if err := fn(txCtx, tx); err != nil {
		inner.Rollback()
		return err
	}
	if err := inner.Commit(); err != nil {
		inner.Rollback()
		return err
	}

	// Commit succeeded: this is the single point where the transaction's
	// writes become visible to other operations through the cache.
	fsys.caches.publish(tx.stage)
	return nil
}

// retryBackoff computes the sleep before retry attempt+1.
func retryBackoff(attempt int) time.Duration {
	backoff := retryBackoffBase << uint(attempt)
	if backoff > retryBackoffCap || backoff <= 0 {
		backoff = retryBackoffCap
	}
	jitter := 0.5 + rand.Float64()
	return time.Duration(float64(backoff) * jitter)
}

// mapBackendError converts backend sentinels that escape a unit of work into
// domain errors. Domain errors and context errors pass through.
func mapBackendError(err error) error {
	var fsErr *Error
	if errors.As(err, &fsErr) {
		return fsErr
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, kv.ErrTxnTooLarge):
		return &Error{Code: ErrOutOfSpace, Message: "transaction exceeds backend capacity"}
	case errors.Is(err, kv.ErrStoreClosed):
		return &Error{Code: ErrBackendUnavailable, Message: "backend store is closed"}
	default:
		return err
	}
}
