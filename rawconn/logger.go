package rawconn

import "log"

// Logger is the minimal logging seam, matching go-sql-driver/mysql's own
// Logger interface so callers can plug in any existing *log.Logger (or
// adapt one) without pulling a logging framework into this package.
type Logger interface {
	Print(v ...any)
}

// defaultLogger adapts the standard library logger.
type defaultLogger struct {
	l *log.Logger
}

func (d defaultLogger) Print(v ...any) { d.l.Println(v...) }

// DefaultLogger is used when a RawConn is built without an explicit Logger.
var DefaultLogger Logger = defaultLogger{l: log.Default()}
