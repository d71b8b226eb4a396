package database

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/jmoiron/sqlx"
)

// SlotLocker serializes slot-scoped write transactions. Every write path that
// mutates the occupancy ledger runs its read-check-then-write sequence under
// an advisory lock keyed by the target (day, startTime), so two concurrent
// callers cannot both observe "slot free" and both commit.
type SlotLocker struct {
	db *sqlx.DB
}

// NewSlotLocker constructs a SlotLocker over the given database.
func NewSlotLocker(db *sqlx.DB) *SlotLocker {
	return &SlotLocker{db: db}
}

// slotLockKey derives a stable advisory-lock key for a (day, startTime) pair.
func slotLockKey(day, startTime string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(day + "|" + startTime))
	return int64(h.Sum64())
}

// WithSlotLock runs fn inside a transaction holding a Postgres advisory lock
// scoped to the given slot. The lock is released automatically on commit or
// rollback.
func (l *SlotLocker) WithSlotLock(ctx context.Context, day, startTime string, fn func(tx *sqlx.Tx) error) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin slot transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, slotLockKey(day, startTime)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("acquire slot lock: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit slot transaction: %w", err)
	}
	return nil
}
