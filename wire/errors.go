// Package wire implements the MySQL/MariaDB binary wire protocol: packet
// framing, length-encoded integers and strings, and the binary row and
// parameter-bind codecs. It has no notion of connection state; see the
// rawconn package for the state machine that drives a socket through the
// protocol.
package wire

import "errors"

// Sentinel errors, in the style of go-sql-driver/mysql's package-level
// error values (ErrInvalidConn, ErrMalformPkt, ...).
var (
	// ErrBusyBuffer names the condition of a second buffer being requested
	// while one is already checked out. Buffer.Take hands out its scratch
	// slice without any checkout, so nothing in this package returns it.
	ErrBusyBuffer = errors.New("wire: busy buffer")

	// ErrMalformedPacket indicates a packet could not be parsed at all:
	// truncated header, length overrun, or similar framing damage.
	ErrMalformedPacket = errors.New("wire: malformed packet")

	// ErrPacketTooLarge is returned when a packet payload would exceed the
	// configured maximum (spec: packets over 16MiB, the extended-packet
	// case, are rejected outright rather than split).
	ErrPacketTooLarge = errors.New("wire: packet too large")

	// ErrPacketSequence indicates the server's sequence byte didn't match
	// what we expected — the connection has desynchronized and must be
	// treated as broken.
	ErrPacketSequence = errors.New("wire: packet out of sequence")

	// ErrInvalidLengthByte names a length-encoded integer whose leading
	// byte is 0xFF, which is reserved and never valid in that position.
	// The decoders in this package do not return it: ReadLengthEncodedInteger
	// reports that case with a zero byte count, and the string readers
	// turn that into ErrMalformedPacket.
	ErrInvalidLengthByte = errors.New("wire: invalid length-encoded integer")
)
