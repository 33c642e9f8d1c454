package rawconn

import "fmt"

// State is the raw connection's protocol state (spec §3 "Connection
// state"). Exactly one State is active at a time; every suspension point
// (socket read/write) is preceded by a transition into a State that
// records enough information for Cleanup to drain the connection back to
// Clean or Broken without losing packet-sequence framing.
type State int

const (
	// Clean: idle, no partial command in flight.
	Clean State = iota
	// PrepareStatementSend: about to write COM_STMT_PREPARE.
	PrepareStatementSend
	// PrepareStatementReadHead: waiting for the prepare response header.
	PrepareStatementReadHead
	// PrepareStatementReadParams: draining param/column definition packets
	// after a successful prepare response.
	PrepareStatementReadParams
	// ClosePreparedStatement: about to fire-and-forget a STMT_CLOSE.
	ClosePreparedStatement
	// QuerySend: about to write COM_STMT_EXECUTE.
	QuerySend
	// QueryReadHead: waiting for the execute response header.
	QueryReadHead
	// QueryReadColumns: draining column-definition packets after a
	// resultset header.
	QueryReadColumns
	// QueryReadRows: ready to read (or in the middle of reading) row
	// packets.
	QueryReadRows
	// UnpreparedSend: about to write a literal COM_QUERY.
	UnpreparedSend
	// UnpreparedRecv: waiting for the COM_QUERY response (OK or ERR only;
	// used for BEGIN/COMMIT/ROLLBACK/SAVEPOINT/RELEASE, never SELECT).
	UnpreparedRecv
	// Broken: terminal. Any further operation fails immediately.
	Broken
)

func (s State) String() string {
	switch s {
	case Clean:
		return "Clean"
	case PrepareStatementSend:
		return "PrepareStatementSend"
	case PrepareStatementReadHead:
		return "PrepareStatementReadHead"
	case PrepareStatementReadParams:
		return "PrepareStatementReadParams"
	case ClosePreparedStatement:
		return "ClosePreparedStatement"
	case QuerySend:
		return "QuerySend"
	case QueryReadHead:
		return "QueryReadHead"
	case QueryReadColumns:
		return "QueryReadColumns"
	case QueryReadRows:
		return "QueryReadRows"
	case UnpreparedSend:
		return "UnpreparedSend"
	case UnpreparedRecv:
		return "UnpreparedRecv"
	case Broken:
		return "Broken"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// prepareProgress tracks PrepareStatementReadParams{params_left, cols_left,
// stmt_id} from spec §3.
type prepareProgress struct {
	stmtID     uint32
	paramsLeft int
	colsLeft   int
}

// queryProgress tracks QueryReadColumns(n): how many column-definition
// packets remain to be drained after a resultset header.
type queryProgress struct {
	colsLeft int
}
