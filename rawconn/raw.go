// Package rawconn implements the connection-level protocol state machine
// (spec §3, §4.3, §5): one TCP connection, one command in flight at a
// time, and the cancellation discipline that lets a caller abandon an
// in-flight operation (via ctx) and later drive the connection back to a
// known-good state with Cleanup.
//
// There is no Rust-style linear-type "drop" in Go, so the async-drop-safety
// contract from spec §5 is reinterpreted as: every blocking operation takes
// a context.Context; if ctx is cancelled mid-read/write the operation
// returns ctx.Err() and leaves the RawConn's State wherever the FSM was
// mid-command, and the caller MUST call Cleanup(ctx) before issuing any
// further command. Cleanup is the explicit stand-in for what a Drop impl
// would have done implicitly.
package rawconn

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/sqly-go/sqly/auth"
	"github.com/sqly-go/sqly/wire"
)

const (
	comQuit        = 0x01
	comQuery       = 0x03
	comStmtPrepare = 0x16
	comStmtExecute = 0x17
	comStmtClose   = 0x19
)

const cursorTypeNoCursor = 0x00

// Row is one fetched result row, column-aligned with the Columns slice
// returned by Execute.
type Row struct {
	Values []wire.Value
}

// RawConn drives a single MySQL/MariaDB connection through the states
// in spec §3. It is not safe for concurrent use: the protocol is
// inherently one-command-at-a-time, matching spec's "single outstanding
// operation per connection" model.
type RawConn struct {
	nc  net.Conn
	buf *wire.Buffer
	log Logger

	state State
	prep  prepareProgress
	query queryProgress

	// activeCols holds the column definitions for the result set currently
	// being read in QueryReadRows, needed by FetchNext/FetchOne/FetchOptional
	// to know how many and what type of values to decode per row.
	activeCols []wire.Column

	// cancelCounter/cancelAt implement the test-only InjectCancelAt hook
	// (spec §8's drop-safety sweep wants a cancellation injected at every
	// suspension point in turn, without a recompiled build per point).
	cancelCounter int
	cancelAt      int
}

// Dial opens a TCP connection and completes the handshake and
// mysql_native_password authentication (spec §4.2). TLS is out of scope
// per spec's Non-goals; tlsConfig is accepted only to fail loudly if a
// caller passes one rather than silently ignoring it.
func Dial(ctx context.Context, addr string, user, password, database string, tlsConfig *tls.Config) (*RawConn, error) {
	if tlsConfig != nil {
		return nil, protoErrf("TLS is not supported")
	}
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	rc := &RawConn{
		nc:  nc,
		buf: wire.NewBuffer(nc),
		log: DefaultLogger,
	}
	if err := rc.authenticate(ctx, user, password, database); err != nil {
		_ = nc.Close()
		return nil, err
	}
	return rc, nil
}

// SetLogger overrides the default Logger.
func (rc *RawConn) SetLogger(l Logger) { rc.log = l }

// State reports the current FSM state, chiefly useful for tests.
func (rc *RawConn) State() State { return rc.state }

// InjectCancelAt arms a one-shot test hook: the n-th suspension point
// (socket read or write) reached after arming returns ErrTestCancelled
// instead of performing I/O, simulating a context cancellation racing the
// exact point spec §8's drop-safety sweep wants to exercise. n == 0
// disarms the hook. This method only exists to support tests; production
// callers use ctx cancellation instead.
func (rc *RawConn) InjectCancelAt(n int) {
	rc.cancelAt = n
	rc.cancelCounter = 0
}

func (rc *RawConn) checkInjectedCancel() error {
	if rc.cancelAt == 0 {
		return nil
	}
	rc.cancelCounter++
	if rc.cancelCounter == rc.cancelAt {
		return ErrTestCancelled
	}
	return nil
}

func (rc *RawConn) readPacket(ctx context.Context) ([]byte, error) {
	if err := rc.checkInjectedCancel(); err != nil {
		return nil, err
	}
	return rc.buf.ReadPacket(ctx)
}

func (rc *RawConn) writePacket(ctx context.Context, data []byte) error {
	if err := rc.checkInjectedCancel(); err != nil {
		return err
	}
	return rc.buf.WritePacket(ctx, data)
}

func (rc *RawConn) authenticate(ctx context.Context, user, password, database string) error {
	pkt, err := rc.buf.ReadPacket(ctx)
	if err != nil {
		return err
	}
	hs, err := auth.ParseHandshake(pkt)
	if err != nil {
		return protoErrf("handshake: %v", err)
	}

	body, err := auth.BuildResponse(auth.HandshakeResponse{
		User:      user,
		Password:  password,
		Database:  database,
		Handshake: hs,
	})
	if err != nil {
		return err
	}
	// response sequence continues from the server's handshake packet
	if err := rc.buf.WritePacket(ctx, body); err != nil {
		return err
	}

	pkt, err = rc.buf.ReadPacket(ctx)
	if err != nil {
		return err
	}
	res, err := auth.ParseResult(pkt)
	if err != nil {
		return protoErrf("auth result: %v", err)
	}
	if !res.OK {
		return serverErrorFromAuth(res.Err)
	}
	rc.state = Clean
	return nil
}

// Close sends COM_QUIT best-effort and closes the socket. It never returns
// a protocol error for a dirty state; callers that care about a clean
// shutdown should Cleanup first.
func (rc *RawConn) Close() error {
	if rc.state == Clean {
		rc.buf.ResetSequence()
		_ = rc.buf.WritePacket(context.Background(), []byte{comQuit})
	}
	return rc.nc.Close()
}

func (rc *RawConn) requireClean() error {
	switch rc.state {
	case Clean:
		return nil
	case Broken:
		return ErrBroken
	default:
		return protoErrf("operation attempted while connection is in state %s; call Cleanup first", rc.state)
	}
}

// --- Prepare -----------------------------------------------------------

// Prepare issues COM_STMT_PREPARE and reads the full prepare response,
// including parameter and column definition packets (spec §4.1 "Prepared
// statement cache" relies on this). On success the connection returns to
// Clean.
func (rc *RawConn) Prepare(ctx context.Context, query string) (stmtID uint32, numParams int, columns []wire.Column, err error) {
	if err := rc.requireClean(); err != nil {
		return 0, 0, nil, err
	}

	rc.state = PrepareStatementSend
	rc.buf.ResetSequence()
	payload := append([]byte{comStmtPrepare}, query...)
	if err := rc.writePacket(ctx, payload); err != nil {
		return 0, 0, nil, err
	}

	rc.state = PrepareStatementReadHead
	pkt, err := rc.readPacket(ctx)
	if err != nil {
		return 0, 0, nil, err
	}
	if pkt[0] == 0xff {
		se, perr := parseErrPacketLocal(pkt)
		if perr != nil {
			rc.state = Broken
			return 0, 0, nil, protoErrf("malformed error packet: %v", perr)
		}
		rc.state = Clean
		return 0, 0, nil, se
	}
	if pkt[0] != 0x00 || len(pkt) < 12 {
		rc.state = Broken
		return 0, 0, nil, protoErrf("unexpected prepare response header byte 0x%02x", pkt[0])
	}
	stmtID = leUint32(pkt[1:5])
	numCols := int(leUint16(pkt[5:7]))
	numParams = int(leUint16(pkt[7:9]))

	rc.state = PrepareStatementReadParams
	rc.prep = prepareProgress{stmtID: stmtID, paramsLeft: numParams, colsLeft: numCols}

	for rc.prep.paramsLeft > 0 {
		if _, err := rc.readPacket(ctx); err != nil {
			return 0, 0, nil, err
		}
		rc.prep.paramsLeft--
	}
	if numParams > 0 {
		if err := rc.drainEOFIfPresent(ctx); err != nil {
			return 0, 0, nil, err
		}
	}

	cols := make([]wire.Column, 0, numCols)
	for rc.prep.colsLeft > 0 {
		colPkt, err := rc.readPacket(ctx)
		if err != nil {
			return 0, 0, nil, err
		}
		col, cerr := wire.ParseColumnDefinition(colPkt)
		if cerr != nil {
			rc.state = Broken
			return 0, 0, nil, protoErrf("column definition: %v", cerr)
		}
		cols = append(cols, col)
		rc.prep.colsLeft--
	}
	if numCols > 0 {
		if err := rc.drainEOFIfPresent(ctx); err != nil {
			return 0, 0, nil, err
		}
	}

	rc.state = Clean
	return stmtID, numParams, cols, nil
}

// drainEOFIfPresent reads nothing and returns nil. CapDeprecateEOF is
// always set (spec §6) so servers omit the EOF marker after definition
// packets; an EOF marker that a server sends anyway is not consumed here.
func (rc *RawConn) drainEOFIfPresent(ctx context.Context) error {
	return nil
}

// ClosePreparedStatement sends COM_STMT_CLOSE, which the protocol defines
// as a fire-and-forget command with no response (spec §4.1).
func (rc *RawConn) ClosePreparedStatement(ctx context.Context, stmtID uint32) error {
	if err := rc.requireClean(); err != nil {
		return err
	}
	rc.state = ClosePreparedStatement
	rc.buf.ResetSequence()
	payload := make([]byte, 5)
	payload[0] = comStmtClose
	putLeUint32(payload[1:], stmtID)
	if err := rc.writePacket(ctx, payload); err != nil {
		return err
	}
	rc.state = Clean
	return nil
}

// --- Execute -------------------------------------------------------------

// Execute issues COM_STMT_EXECUTE for a previously prepared statement.
// When the statement is a SELECT (or otherwise returns a result set),
// Execute returns the result columns and leaves the connection in
// QueryReadRows, ready for FetchNext/FetchOne/FetchOptional. Otherwise it
// returns (nil, nil) and the connection returns to Clean directly (spec
// §4.1 "Unprepared statement" / execute response); the OK packet's
// affected-row count and last-insert id are not decoded or returned.
func (rc *RawConn) Execute(ctx context.Context, stmtID uint32, args []wire.Arg) (columns []wire.Column, err error) {
	if err := rc.requireClean(); err != nil {
		return nil, err
	}

	rc.state = QuerySend
	rc.buf.ResetSequence()
	payload := make([]byte, 0, 16+len(args)*8)
	payload = append(payload, comStmtExecute)
	var idBuf [4]byte
	putLeUint32(idBuf[:], stmtID)
	payload = append(payload, idBuf[:]...)
	payload = append(payload, cursorTypeNoCursor)
	payload = append(payload, 1, 0, 0, 0) // iteration-count, always 1

	if len(args) > 0 {
		payload, err = wire.AppendExecuteParams(payload, args, nil)
		if err != nil {
			return nil, &BindError{Kind: TypeMismatch, Msg: err.Error()}
		}
	}
	if err := rc.writePacket(ctx, payload); err != nil {
		return nil, err
	}

	rc.state = QueryReadHead
	return rc.readQueryHead(ctx)
}

// UnpreparedExecute issues a literal COM_QUERY for statements that never
// need parameter binding: BEGIN/COMMIT/ROLLBACK/SAVEPOINT/RELEASE
// SAVEPOINT (spec §4.4's transaction control). It expects exactly an OK or
// ERR response; a result set is a protocol error here.
func (rc *RawConn) UnpreparedExecute(ctx context.Context, query string) error {
	if err := rc.requireClean(); err != nil {
		return err
	}
	rc.state = UnpreparedSend
	rc.buf.ResetSequence()
	payload := append([]byte{comQuery}, query...)
	if err := rc.writePacket(ctx, payload); err != nil {
		return err
	}

	rc.state = UnpreparedRecv
	pkt, err := rc.readPacket(ctx)
	if err != nil {
		return err
	}
	switch pkt[0] {
	case 0x00:
		rc.state = Clean
		return nil
	case 0xff:
		se, perr := parseErrPacketLocal(pkt)
		if perr != nil {
			rc.state = Broken
			return protoErrf("malformed error packet: %v", perr)
		}
		rc.state = Clean
		return se
	default:
		rc.state = Broken
		return protoErrf("unprepared statement unexpectedly returned a result set")
	}
}

// readQueryHead reads the response header to COM_STMT_EXECUTE: either an OK
// packet (no rows), an ERR packet, or a result-set header followed by
// column definitions.
func (rc *RawConn) readQueryHead(ctx context.Context) ([]wire.Column, error) {
	pkt, err := rc.readPacket(ctx)
	if err != nil {
		return nil, err
	}
	switch pkt[0] {
	case 0x00:
		rc.state = Clean
		rc.activeCols = nil
		return nil, nil
	case 0xff:
		se, perr := parseErrPacketLocal(pkt)
		if perr != nil {
			rc.state = Broken
			return nil, protoErrf("malformed error packet: %v", perr)
		}
		rc.state = Clean
		return nil, se
	}

	numCols, _, n := wire.ReadLengthEncodedInteger(pkt)
	if n == 0 {
		rc.state = Broken
		return nil, protoErrf("malformed result set header")
	}

	rc.state = QueryReadColumns
	rc.query = queryProgress{colsLeft: int(numCols)}
	cols := make([]wire.Column, 0, numCols)
	for rc.query.colsLeft > 0 {
		colPkt, err := rc.readPacket(ctx)
		if err != nil {
			return nil, err
		}
		col, cerr := wire.ParseColumnDefinition(colPkt)
		if cerr != nil {
			rc.state = Broken
			return nil, protoErrf("column definition: %v", cerr)
		}
		cols = append(cols, col)
		rc.query.colsLeft--
	}
	if err := rc.drainEOFIfPresent(ctx); err != nil {
		return nil, err
	}

	rc.state = QueryReadRows
	rc.activeCols = cols
	return cols, nil
}

// --- Fetch -----------------------------------------------------------

// FetchNext reads the next row of an active result set. It returns
// (nil, nil) once the result set is exhausted, at which point the
// connection returns to Clean. Calling FetchNext outside QueryReadRows is
// a programmer error reported as a protocol error.
func (rc *RawConn) FetchNext(ctx context.Context) (*Row, error) {
	if rc.state != QueryReadRows {
		return nil, protoErrf("FetchNext called outside an active result set (state %s)", rc.state)
	}
	pkt, err := rc.readPacket(ctx)
	if err != nil {
		return nil, err
	}
	if isEOFPacket(pkt) {
		rc.state = Clean
		rc.activeCols = nil
		return nil, nil
	}
	if pkt[0] == 0xff {
		se, perr := parseErrPacketLocal(pkt)
		if perr != nil {
			rc.state = Broken
			return nil, protoErrf("malformed error packet: %v", perr)
		}
		rc.state = Clean
		return nil, se
	}

	vals := make([]wire.Value, len(rc.activeCols))
	if err := wire.DecodeBinaryRow(pkt, rc.activeCols, vals); err != nil {
		return nil, &DecodeError{Location: "row", Err: err}
	}
	return &Row{Values: vals}, nil
}

// FetchOptional reads a result set expected to contain zero or one row
// (spec §4.3 "fetch_optional"). A second row is a semantic error.
func (rc *RawConn) FetchOptional(ctx context.Context) (*Row, error) {
	row, err := rc.FetchNext(ctx)
	if err != nil || row == nil {
		return row, err
	}
	extra, err := rc.FetchNext(ctx)
	if err != nil {
		return nil, err
	}
	if extra != nil {
		rc.state = Broken
		return nil, ErrUnexpectedRows
	}
	return row, nil
}

// FetchOne reads a result set expected to contain exactly one row (spec
// §4.3 "fetch_one"). Zero or more than one row is a semantic error.
func (rc *RawConn) FetchOne(ctx context.Context) (*Row, error) {
	row, err := rc.FetchOptional(ctx)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrExpectedRows
	}
	return row, nil
}

// DrainRows discards the remainder of an active result set without
// decoding rows, used when a caller executes a statement it expects to
// produce no rows but which (per ExpectedRows/UnexpectedRows semantics)
// actually did.
func (rc *RawConn) DrainRows(ctx context.Context) error {
	for rc.state == QueryReadRows {
		_, err := rc.FetchNext(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

// --- Cleanup -----------------------------------------------------------

// Cleanup drains any in-flight command back to Clean (or, if the
// connection was already unrecoverable, Broken), per spec §5's
// drop-safety contract. It is idempotent: calling it while already Clean
// or Broken is a no-op. This is the explicit action a caller must take
// after a ctx cancellation aborted an operation mid-flight, since Go has
// no destructor to do it implicitly.
func (rc *RawConn) Cleanup(ctx context.Context) error {
	switch rc.state {
	case Clean, Broken:
		return nil

	case PrepareStatementSend, QuerySend, UnpreparedSend, ClosePreparedStatement:
		// The write may or may not have reached the server; the only safe
		// recovery is to assume the connection's framing is now unknown.
		rc.state = Broken
		return ErrBroken

	case PrepareStatementReadHead, QueryReadHead, UnpreparedRecv:
		pkt, err := rc.buf.ReadPacket(ctx)
		if err != nil {
			rc.state = Broken
			return err
		}
		if rc.state == PrepareStatementReadHead && len(pkt) >= 12 && pkt[0] == 0x00 {
			// a successful prepare header is followed by definition packets
			rc.prep = prepareProgress{stmtID: leUint32(pkt[1:5]), paramsLeft: int(leUint16(pkt[7:9])), colsLeft: int(leUint16(pkt[5:7]))}
			rc.state = PrepareStatementReadParams
			return rc.Cleanup(ctx)
		}
		if rc.state == QueryReadHead && len(pkt) > 0 && pkt[0] != 0x00 && pkt[0] != 0xff {
			// a result-set header is followed by column definitions and rows
			numCols, _, _ := wire.ReadLengthEncodedInteger(pkt)
			rc.query = queryProgress{colsLeft: int(numCols)}
			rc.state = QueryReadColumns
			return rc.Cleanup(ctx)
		}
		rc.state = Clean
		return nil

	case PrepareStatementReadParams:
		for rc.prep.paramsLeft > 0 {
			if _, err := rc.buf.ReadPacket(ctx); err != nil {
				rc.state = Broken
				return err
			}
			rc.prep.paramsLeft--
		}
		for rc.prep.colsLeft > 0 {
			if _, err := rc.buf.ReadPacket(ctx); err != nil {
				rc.state = Broken
				return err
			}
			rc.prep.colsLeft--
		}
		rc.state = Clean
		return nil

	case QueryReadColumns:
		for rc.query.colsLeft > 0 {
			if _, err := rc.buf.ReadPacket(ctx); err != nil {
				rc.state = Broken
				return err
			}
			rc.query.colsLeft--
		}
		rc.state = QueryReadRows
		return rc.Cleanup(ctx)

	case QueryReadRows:
		for {
			pkt, err := rc.buf.ReadPacket(ctx)
			if err != nil {
				rc.state = Broken
				return err
			}
			if isEOFPacket(pkt) || pkt[0] == 0xff {
				rc.state = Clean
				rc.activeCols = nil
				return nil
			}
		}

	default:
		return protoErrf("Cleanup: unhandled state %s", rc.state)
	}
}

// --- small wire helpers local to this package --------------------------

func isEOFPacket(pkt []byte) bool {
	return len(pkt) < 9 && len(pkt) > 0 && pkt[0] == 0xfe
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leUint16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func putLeUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func parseErrPacketLocal(pkt []byte) (*ServerError, error) {
	if len(pkt) < 3 {
		return nil, fmt.Errorf("truncated error packet")
	}
	number := leUint16(pkt[1:3])
	pos := 3
	var state string
	if len(pkt) > 3 && pkt[3] == '#' {
		if len(pkt) < 9 {
			return nil, fmt.Errorf("truncated error packet sqlstate")
		}
		state = string(pkt[4:9])
		pos = 9
	}
	return &ServerError{Number: number, State: state, Message: string(pkt[pos:])}, nil
}
