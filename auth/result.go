package auth

import "fmt"

// Result is the outcome of reading the server's reply to our handshake
// response (spec §4.2).
type Result struct {
	OK  bool
	Err *ServerError
}

// ServerError is a decoded ERR_Packet seen during authentication.
type ServerError struct {
	Number  uint16
	State   string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("auth: server error %d (%s): %s", e.Number, e.State, e.Message)
}

// ParseResult decodes the single reply byte sent after HandshakeResponse41:
// 0x00 = OK, 0xFF = ERR, anything else is a protocol error.
func ParseResult(data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, fmt.Errorf("auth: empty auth result packet")
	}
	switch data[0] {
	case 0x00:
		return Result{OK: true}, nil
	case 0xff:
		se, err := parseErrPacket(data)
		if err != nil {
			return Result{}, err
		}
		return Result{Err: se}, nil
	default:
		return Result{}, fmt.Errorf("auth: unexpected auth result byte 0x%02x", data[0])
	}
}

func parseErrPacket(data []byte) (*ServerError, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("auth: truncated error packet")
	}
	number := uint16(data[1]) | uint16(data[2])<<8
	pos := 3
	var state string
	if len(data) > 3 && data[3] == '#' {
		if len(data) < 9 {
			return nil, fmt.Errorf("auth: truncated error packet sqlstate")
		}
		state = string(data[4:9])
		pos = 9
	}
	return &ServerError{Number: number, State: state, Message: string(data[pos:])}, nil
}
