package rawconn

import (
	"context"
	"net"
	"testing"

	"github.com/sqly-go/sqly/wire"
)

// newTestConn wires a RawConn directly to one end of an in-memory pipe,
// skipping Dial/authenticate so tests can script raw server bytes on the
// other end.
func newTestConn(t *testing.T) (*RawConn, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	rc := &RawConn{nc: client, buf: wire.NewBuffer(client), log: DefaultLogger, state: Clean}
	t.Cleanup(func() { _ = client.Close(); _ = server.Close() })
	return rc, server
}

// writePacket and readPacketRaw never call t.Fatal: they run from a
// goroutine playing "server", which may still be blocked on I/O after the
// test function itself has returned and its *testing.T become invalid.
// Errors are swallowed; a broken script shows up as the main goroutine's
// assertions failing on the resulting zero values instead.

func writePacket(conn net.Conn, seq byte, payload []byte) {
	hdr := []byte{byte(len(payload)), byte(len(payload) >> 8), byte(len(payload) >> 16), seq}
	if _, err := conn.Write(hdr); err != nil {
		return
	}
	_, _ = conn.Write(payload)
}

func readPacketRaw(conn net.Conn) (seq byte, payload []byte, ok bool) {
	hdr := make([]byte, 4)
	if _, err := readFull(conn, hdr); err != nil {
		return 0, nil, false
	}
	n := int(hdr[0]) | int(hdr[1])<<8 | int(hdr[2])<<16
	body := make([]byte, n)
	if _, err := readFull(conn, body); err != nil {
		return 0, nil, false
	}
	return hdr[3], body, true
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		m, err := conn.Read(buf[total:])
		total += m
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// columnDefFixture builds a minimal valid column-definition packet body.
func columnDefFixture(name string) []byte {
	var b []byte
	b = wire.AppendLengthEncodedString(b, []byte("def"))
	b = wire.AppendLengthEncodedString(b, []byte("db"))
	b = wire.AppendLengthEncodedString(b, []byte("t"))
	b = wire.AppendLengthEncodedString(b, []byte("t"))
	b = wire.AppendLengthEncodedString(b, []byte(name))
	b = wire.AppendLengthEncodedString(b, []byte(name))
	b = append(b, 0x0c)
	b = append(b, 0x21, 0x00)
	b = append(b, 0, 0, 0, 0)
	b = append(b, 0x01) // field type Tiny
	b = append(b, 0x00, 0x00)
	b = append(b, 0x00)
	return b
}

func TestPrepareAndExecuteHappyPath(t *testing.T) {
	rc, server := newTestConn(t)

	go func() {
		if _, body, ok := readPacketRaw(server); !ok || body[0] != comStmtPrepare {
			return
		}

		head := make([]byte, 12)
		head[0] = 0x00
		putLeUint32(head[1:5], 1)
		head[5], head[6] = 1, 0 // num_columns
		head[7], head[8] = 1, 0 // num_params
		writePacket(server, 1, head)
		writePacket(server, 2, columnDefFixture("?"))
		writePacket(server, 3, columnDefFixture("id"))

		if _, _, ok := readPacketRaw(server); !ok {
			return
		}
		writePacket(server, 1, []byte{0x01})
		writePacket(server, 2, columnDefFixture("id"))
		writePacket(server, 3, []byte{0x00, 0x00, 42})
		writePacket(server, 4, []byte{0xfe, 0x00, 0x00})
	}()

	ctx := context.Background()
	stmtID, numParams, _, err := rc.Prepare(ctx, "SELECT id FROM t WHERE id = ?")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if stmtID != 1 || numParams != 1 {
		t.Fatalf("stmtID=%d numParams=%d", stmtID, numParams)
	}
	if rc.State() != Clean {
		t.Fatalf("state after Prepare = %s", rc.State())
	}

	cols, err := rc.Execute(ctx, stmtID, []wire.Arg{{Kind: wire.ArgInt64, I64: 1}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(cols) != 1 {
		t.Fatalf("expected 1 column, got %d", len(cols))
	}
	row, err := rc.FetchNext(ctx)
	if err != nil {
		t.Fatalf("FetchNext: %v", err)
	}
	if row == nil || row.Values[0].I64 != 42 {
		t.Fatalf("unexpected row: %+v", row)
	}
	last, err := rc.FetchNext(ctx)
	if err != nil || last != nil {
		t.Fatalf("expected end of result set, got row=%+v err=%v", last, err)
	}
	if rc.State() != Clean {
		t.Fatalf("state after fetch loop = %s", rc.State())
	}
}

func TestUnpreparedExecuteOK(t *testing.T) {
	rc, server := newTestConn(t)
	go func() {
		if _, _, ok := readPacketRaw(server); !ok {
			return
		}
		writePacket(server, 1, []byte{0x00, 0x00, 0x00})
	}()
	if err := rc.UnpreparedExecute(context.Background(), "BEGIN"); err != nil {
		t.Fatalf("UnpreparedExecute: %v", err)
	}
	if rc.State() != Clean {
		t.Fatalf("state = %s, want Clean", rc.State())
	}
}

func TestUnpreparedExecuteServerError(t *testing.T) {
	rc, server := newTestConn(t)
	go func() {
		if _, _, ok := readPacketRaw(server); !ok {
			return
		}
		errPkt := append([]byte{0xff, 0x51, 0x04}, []byte("#40001deadlock found")...)
		writePacket(server, 1, errPkt)
	}()
	err := rc.UnpreparedExecute(context.Background(), "COMMIT")
	se, ok := err.(*ServerError)
	if !ok {
		t.Fatalf("expected *ServerError, got %v (%T)", err, err)
	}
	if se.Number != 0x0451 {
		t.Fatalf("error number = %d", se.Number)
	}
	if rc.State() != Clean {
		t.Fatalf("state after server error = %s, want Clean", rc.State())
	}
}

func TestCleanupDrainsQueryReadRows(t *testing.T) {
	rc, server := newTestConn(t)
	go func() {
		if _, _, ok := readPacketRaw(server); !ok {
			return
		}
		writePacket(server, 1, []byte{0x01})
		writePacket(server, 2, columnDefFixture("id"))
	}()
	ctx := context.Background()
	if _, err := rc.Execute(ctx, 1, nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if rc.State() != QueryReadRows {
		t.Fatalf("state = %s, want QueryReadRows", rc.State())
	}

	go func() {
		writePacket(server, 3, []byte{0x00, 0x00, 1})
		writePacket(server, 4, []byte{0xfe, 0x00, 0x00})
	}()
	if err := rc.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if rc.State() != Clean {
		t.Fatalf("state after Cleanup = %s, want Clean", rc.State())
	}
}

func TestCleanupIdempotentWhenClean(t *testing.T) {
	rc, _ := newTestConn(t)
	if err := rc.Cleanup(context.Background()); err != nil {
		t.Fatalf("Cleanup on Clean state: %v", err)
	}
}

func TestPreCancelledContextAbortsPrepare(t *testing.T) {
	rc, server := newTestConn(t)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, _, err := rc.Prepare(ctx, "SELECT 1")
	if err == nil {
		t.Fatal("expected an error from a pre-cancelled context")
	}
	if rc.State() == Clean {
		t.Fatal("state should not silently return to Clean after an aborted Prepare")
	}
}

// TestInjectCancelAtDropSafetySweep exercises every suspension point in
// Prepare in turn: for each, force a cancellation there and confirm
// Cleanup always recovers the connection to a known, usable state, per
// the drop-safety discipline this package implements in place of Rust's
// linear-typed Drop.
func TestInjectCancelAtDropSafetySweep(t *testing.T) {
	for point := 1; point <= 2; point++ {
		rc, server := newTestConn(t)
		rc.InjectCancelAt(point)

		go func() {
			if _, _, ok := readPacketRaw(server); !ok {
				return
			}
			head := make([]byte, 12)
			head[0] = 0x00
			putLeUint32(head[1:5], 1)
			writePacket(server, 1, head)
		}()

		ctx := context.Background()
		_, _, _, err := rc.Prepare(ctx, "SELECT 1")
		if err == nil {
			t.Fatalf("point %d: expected injected cancellation", point)
		}
		rc.InjectCancelAt(0)
		_ = rc.Cleanup(ctx)
		if rc.State() != Clean && rc.State() != Broken {
			t.Fatalf("point %d: state after Cleanup = %s, want Clean or Broken", point, rc.State())
		}
	}
}
