package conn

import (
	"context"
	"errors"
	"fmt"

	"github.com/sqly-go/sqly/wire"
)

// ErrTxDone is returned by Commit, Rollback, or Close on a Tx that has
// already been finalized.
var ErrTxDone = errors.New("conn: transaction already committed, rolled back, or closed")

// Tx is a handle onto one transaction nesting level (spec §4.4). Go has no
// destructor equivalent to the drop that finalizes an abandoned
// transaction handle in the source this system was distilled from;
// callers MUST arrange a deferred Close so the deferred-rollback
// bookkeeping runs even when Commit/Rollback is never reached:
//
//	tx, err := c.Begin(ctx)
//	if err != nil { ... }
//	defer tx.Close(ctx)
//	...
//	return tx.Commit(ctx)
//
// Close after a successful Commit or Rollback is a no-op.
type Tx struct {
	conn  *Conn
	depth int
	done  bool
}

// Commit releases this transaction nesting level: COMMIT at depth 1,
// otherwise RELEASE SAVEPOINT _sqly_savepoint_<depth-1>.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return ErrTxDone
	}
	var sql string
	if tx.depth == 1 {
		sql = "COMMIT"
	} else {
		sql = fmt.Sprintf("RELEASE SAVEPOINT _sqly_savepoint_%d", tx.depth-1)
	}
	err := tx.conn.rc.UnpreparedExecute(ctx, sql)
	tx.done = true
	tx.conn.transactionDepth--
	return err
}

// Rollback reverts this transaction nesting level: ROLLBACK at depth 1,
// otherwise ROLLBACK TO SAVEPOINT _sqly_savepoint_<depth-1>.
func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.done {
		return ErrTxDone
	}
	var sql string
	if tx.depth == 1 {
		sql = "ROLLBACK"
	} else {
		sql = fmt.Sprintf("ROLLBACK TO SAVEPOINT _sqly_savepoint_%d", tx.depth-1)
	}
	err := tx.conn.rc.UnpreparedExecute(ctx, sql)
	tx.done = true
	tx.conn.transactionDepth--
	return err
}

// Close is the abandonment path: if the transaction was never committed or
// rolled back, it records a deferred rollback (spec §4.4 "Deferred
// rollback") instead of attempting I/O — this path has no suspension
// point, so unlike Commit/Rollback it cannot be interrupted mid-flight.
// Close never returns an error.
func (tx *Tx) Close(context.Context) error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.conn.cleanupRollbacks++
	return nil
}

// Exec forwards to the owning Conn (spec §4.4 "Polymorphism").
func (tx *Tx) Exec(ctx context.Context, sql string, args ...wire.Arg) error {
	return tx.conn.Exec(ctx, sql, args...)
}

// Query forwards to the owning Conn.
func (tx *Tx) Query(ctx context.Context, sql string, args ...wire.Arg) (*Rows, error) {
	return tx.conn.Query(ctx, sql, args...)
}

// Begin opens a further nested transaction level under the same Conn.
func (tx *Tx) Begin(ctx context.Context) (*Tx, error) {
	return tx.conn.Begin(ctx)
}
