// Package conn layers prepared-statement caching and nested-transaction
// bookkeeping (spec §4.4) on top of a rawconn.RawConn. A Conn owns exactly
// one RawConn; Tx is a thin handle onto the same Conn at a deeper
// transaction nesting level.
package conn

import (
	"context"
	"fmt"

	"github.com/sqly-go/sqly/rawconn"
	"github.com/sqly-go/sqly/wire"
)

// Queryer is the capability shared by Conn and Tx: "supports raw query and
// begin-subtransaction" (spec §4.4 "Polymorphism"). Tx forwards every
// method to its owning Conn; Conn implements them natively.
type Queryer interface {
	Exec(ctx context.Context, sql string, args ...wire.Arg) error
	Query(ctx context.Context, sql string, args ...wire.Arg) (*Rows, error)
	Begin(ctx context.Context) (*Tx, error)
}

type cachedStmt struct {
	stmtID    uint32
	numParams int
	columns   []wire.Column
}

// Conn wraps a RawConn with the SQL-text-to-statement-handle cache and
// transaction-depth tracking spec §4.4 names. It is not safe for
// concurrent use, matching the one-command-at-a-time discipline of the
// RawConn underneath it.
type Conn struct {
	rc    *rawconn.RawConn
	stmts map[string]cachedStmt

	// transactionDepth is the number of currently-open nested
	// transactions/savepoints; 0 means autocommit.
	transactionDepth int
	// cleanupRollbacks counts transactions whose handle was abandoned
	// (Close'd without Commit or Rollback) and must be rolled back before
	// any further work proceeds. Invariant: cleanupRollbacks <= transactionDepth.
	cleanupRollbacks int
}

// New wraps an already-authenticated RawConn.
func New(rc *rawconn.RawConn) *Conn {
	return &Conn{rc: rc, stmts: make(map[string]cachedStmt)}
}

// IsClean reports whether the connection is idle with no pending deferred
// rollbacks. The source this system was distilled from returns an
// unconditional true here; this is the corrected behavior (spec §9).
func (c *Conn) IsClean() bool {
	return c.cleanupRollbacks == 0 && c.rc.State() == rawconn.Clean
}

// Broken reports whether the underlying RawConn is unrecoverable.
func (c *Conn) Broken() bool {
	return c.rc.State() == rawconn.Broken
}

// Cleanup drains any pending deferred rollbacks and then drives the
// underlying RawConn back to Clean (or Broken). Pools call this before
// handing an idle connection back out (spec §4.5).
func (c *Conn) Cleanup(ctx context.Context) error {
	if err := c.drainPendingRollbacks(ctx); err != nil {
		return err
	}
	return c.rc.Cleanup(ctx)
}

// Close releases the underlying socket.
func (c *Conn) Close() error {
	return c.rc.Close()
}

func (c *Conn) prepareCached(ctx context.Context, sql string) (cachedStmt, error) {
	if st, ok := c.stmts[sql]; ok {
		return st, nil
	}
	stmtID, numParams, cols, err := c.rc.Prepare(ctx, sql)
	if err != nil {
		return cachedStmt{}, err
	}
	st := cachedStmt{stmtID: stmtID, numParams: numParams, columns: cols}
	c.stmts[sql] = st
	return st, nil
}

// drainPendingRollbacks issues the ROLLBACK / ROLLBACK TO SAVEPOINT
// statements owed by abandoned transaction handles before any further work
// runs (spec §4.4 "Deferred rollback").
func (c *Conn) drainPendingRollbacks(ctx context.Context) error {
	for c.cleanupRollbacks > 0 {
		var sql string
		if c.transactionDepth == 1 {
			sql = "ROLLBACK"
		} else {
			sql = fmt.Sprintf("ROLLBACK TO SAVEPOINT _sqly_savepoint_%d", c.transactionDepth-1)
		}
		if err := c.rc.UnpreparedExecute(ctx, sql); err != nil {
			return err
		}
		c.transactionDepth--
		c.cleanupRollbacks--
	}
	return nil
}

// Exec runs sql (cached as a prepared statement) expecting no result set.
// A statement that does produce a result set is a semantic error
// (UnexpectedRows); its rows are drained before the error is returned so
// the connection stays usable.
func (c *Conn) Exec(ctx context.Context, sql string, args ...wire.Arg) error {
	if err := c.drainPendingRollbacks(ctx); err != nil {
		return err
	}
	st, err := c.prepareCached(ctx, sql)
	if err != nil {
		return err
	}
	if err := bindCheck(st.numParams, len(args)); err != nil {
		return err
	}
	cols, err := c.rc.Execute(ctx, st.stmtID, args)
	if err != nil {
		return err
	}
	if cols != nil {
		if derr := c.rc.DrainRows(ctx); derr != nil {
			return derr
		}
		return rawconn.ErrUnexpectedRows
	}
	return nil
}

// Query runs sql expecting a result set; a statement that completes with
// only an OK packet is a semantic error (ExpectedRows).
func (c *Conn) Query(ctx context.Context, sql string, args ...wire.Arg) (*Rows, error) {
	if err := c.drainPendingRollbacks(ctx); err != nil {
		return nil, err
	}
	st, err := c.prepareCached(ctx, sql)
	if err != nil {
		return nil, err
	}
	if err := bindCheck(st.numParams, len(args)); err != nil {
		return nil, err
	}
	cols, err := c.rc.Execute(ctx, st.stmtID, args)
	if err != nil {
		return nil, err
	}
	if cols == nil {
		return nil, rawconn.ErrExpectedRows
	}
	return &Rows{rc: c.rc, Columns: cols}, nil
}

func bindCheck(numParams, given int) error {
	switch {
	case given < numParams:
		return &rawconn.BindError{Kind: rawconn.TooFewArgumentsBound, Msg: fmt.Sprintf("statement takes %d arguments, %d bound", numParams, given)}
	case given > numParams:
		return &rawconn.BindError{Kind: rawconn.TooManyArgumentsBound, Msg: fmt.Sprintf("statement takes %d arguments, %d bound", numParams, given)}
	default:
		return nil
	}
}

// Begin opens a new transaction nesting level: BEGIN at depth 0, otherwise
// SAVEPOINT _sqly_savepoint_<depth> (spec §4.4 "Transaction depth"). The
// depth counter advances before the protocol call, so a cancellation
// leaves transactionDepth already reflecting the savepoint whose
// existence on the server is now uncertain — resolved by rawconn's own
// UnpreparedSend/UnpreparedRecv split in Cleanup, exactly as for commit.
func (c *Conn) Begin(ctx context.Context) (*Tx, error) {
	if err := c.drainPendingRollbacks(ctx); err != nil {
		return nil, err
	}
	depth := c.transactionDepth
	var sql string
	if depth == 0 {
		sql = "BEGIN"
	} else {
		sql = fmt.Sprintf("SAVEPOINT _sqly_savepoint_%d", depth)
	}
	c.transactionDepth++
	if err := c.rc.UnpreparedExecute(ctx, sql); err != nil {
		return nil, err
	}
	return &Tx{conn: c, depth: depth + 1}, nil
}

// Rows iterates a result set produced by Query.
type Rows struct {
	rc      *rawconn.RawConn
	Columns []wire.Column
}

// Next reads the next row, returning (nil, nil) once the result set is
// exhausted.
func (r *Rows) Next(ctx context.Context) (*rawconn.Row, error) {
	return r.rc.FetchNext(ctx)
}

// One reads a result set expected to contain exactly one row.
func (r *Rows) One(ctx context.Context) (*rawconn.Row, error) {
	return r.rc.FetchOne(ctx)
}

// Optional reads a result set expected to contain zero or one row.
func (r *Rows) Optional(ctx context.Context) (*rawconn.Row, error) {
	return r.rc.FetchOptional(ctx)
}
