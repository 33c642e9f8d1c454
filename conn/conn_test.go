package conn

import (
	"context"
	"testing"
)

// TestIsCleanFalseWithPendingRollbacks exercises only the bookkeeping this
// package adds on top of RawConn; the wire-level behavior is covered by
// rawconn's own tests.
func TestIsCleanFalseWithPendingRollbacks(t *testing.T) {
	c := &Conn{stmts: make(map[string]cachedStmt)}
	if c.transactionDepth != 0 {
		t.Fatalf("initial depth = %d", c.transactionDepth)
	}
	// No RawConn is attached: Begin/Commit/Rollback all need one, so this
	// test only checks that pending deferred rollbacks make IsClean false,
	// which IsClean decides before it consults the connection state.
	c.cleanupRollbacks = 2
	c.transactionDepth = 2
	if c.IsClean() {
		t.Fatal("IsClean should be false with pending rollbacks")
	}
}

func TestTxCloseIsIdempotentAndDeferredRollbackOnly(t *testing.T) {
	c := &Conn{stmts: make(map[string]cachedStmt)}
	c.transactionDepth = 1
	tx := &Tx{conn: c, depth: 1}

	if err := tx.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c.cleanupRollbacks != 1 {
		t.Fatalf("cleanupRollbacks = %d, want 1", c.cleanupRollbacks)
	}
	// closing again must not double-count
	if err := tx.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if c.cleanupRollbacks != 1 {
		t.Fatalf("cleanupRollbacks after second Close = %d, want 1", c.cleanupRollbacks)
	}
}

func TestTxCommitAfterCloseIsDone(t *testing.T) {
	tx := &Tx{conn: &Conn{}, depth: 1, done: true}
	if err := tx.Commit(context.Background()); err != ErrTxDone {
		t.Fatalf("Commit on done tx = %v, want ErrTxDone", err)
	}
	if err := tx.Rollback(context.Background()); err != ErrTxDone {
		t.Fatalf("Rollback on done tx = %v, want ErrTxDone", err)
	}
}

func TestBindCheck(t *testing.T) {
	if err := bindCheck(2, 1); err == nil {
		t.Fatal("expected TooFewArgumentsBound")
	}
	if err := bindCheck(1, 2); err == nil {
		t.Fatal("expected TooManyArgumentsBound")
	}
	if err := bindCheck(1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
