package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Arg is one bound parameter value for COM_STMT_EXECUTE. Exactly one kind
// is set; an Arg whose Kind is ArgNull (as in the zero value) or whose Null
// is true binds SQL NULL.
type Arg struct {
	Null  bool
	I64   int64
	U64   uint64 // used when Unsigned is true
	F64   float64
	Bool  bool
	Str   string
	Bytes []byte
	Time  time.Time

	Kind ArgKind
}

// ArgKind discriminates which field of Arg is populated.
type ArgKind int

const (
	ArgNull ArgKind = iota
	ArgInt64
	ArgUint64
	ArgFloat64
	ArgBool
	ArgString
	ArgBytes
	ArgTime
)

// AppendExecuteParams appends the NULL-bitmap, type list, and value payload
// for a COM_STMT_EXECUTE packet (spec §4.1 "Parameter bind"). send_types is
// always emitted as 1, matching the spec's allowance to "send 1 every
// time". Ground: go-sql-driver/mysql's writeExecutePacket, restructured
// around the typed Arg rather than driver.Value.
func AppendExecuteParams(buf []byte, args []Arg, loc *time.Location) ([]byte, error) {
	maskLen := (len(args) + 7) / 8
	maskStart := len(buf)
	buf = append(buf, make([]byte, maskLen)...)
	buf = append(buf, 0x01) // newParameterBoundFlag

	typeStart := len(buf)
	buf = append(buf, make([]byte, len(args)*2)...)

	for i, a := range args {
		if a.Kind == ArgNull || a.Null {
			buf[maskStart+i/8] |= 1 << uint(i%8)
			buf[typeStart+i*2] = byte(FieldTypeNull)
			continue
		}
		switch a.Kind {
		case ArgInt64:
			buf[typeStart+i*2] = byte(FieldTypeLongLong)
			buf = appendUint64(buf, uint64(a.I64))
		case ArgUint64:
			buf[typeStart+i*2] = byte(FieldTypeLongLong)
			buf[typeStart+i*2+1] = 0x80
			buf = appendUint64(buf, a.U64)
		case ArgFloat64:
			buf[typeStart+i*2] = byte(FieldTypeDouble)
			buf = appendUint64(buf, math.Float64bits(a.F64))
		case ArgBool:
			buf[typeStart+i*2] = byte(FieldTypeTiny)
			if a.Bool {
				buf = append(buf, 0x01)
			} else {
				buf = append(buf, 0x00)
			}
		case ArgString:
			buf[typeStart+i*2] = byte(FieldTypeString)
			buf = AppendLengthEncodedString(buf, []byte(a.Str))
		case ArgBytes:
			buf[typeStart+i*2] = byte(FieldTypeString)
			buf = AppendLengthEncodedString(buf, a.Bytes)
		case ArgTime:
			buf[typeStart+i*2] = byte(FieldTypeString)
			var tb [32]byte
			enc := appendDateTime(tb[:0], a.Time, loc)
			buf = AppendLengthEncodedString(buf, enc)
		default:
			return nil, fmt.Errorf("wire: unknown argument kind %d", a.Kind)
		}
	}
	return buf, nil
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

// appendDateTime renders t as a MySQL text-protocol-compatible datetime
// string, as teacher's appendDateTime does for binding time.Time params.
func appendDateTime(b []byte, t time.Time, loc *time.Location) []byte {
	if t.IsZero() {
		return append(b, "0000-00-00"...)
	}
	if loc != nil {
		t = t.In(loc)
	}
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	b = appendDigits(b, year, 4)
	b = append(b, '-')
	b = appendDigits(b, int(month), 2)
	b = append(b, '-')
	b = appendDigits(b, day, 2)
	if hour == 0 && min == 0 && sec == 0 && t.Nanosecond() == 0 {
		return b
	}
	b = append(b, ' ')
	b = appendDigits(b, hour, 2)
	b = append(b, ':')
	b = appendDigits(b, min, 2)
	b = append(b, ':')
	b = appendDigits(b, sec, 2)
	if ns := t.Nanosecond(); ns != 0 {
		b = append(b, '.')
		b = appendDigits(b, ns/1000, 6)
	}
	return b
}

func appendDigits(b []byte, v, width int) []byte {
	var tmp [8]byte
	for i := width - 1; i >= 0; i-- {
		tmp[i] = byte('0' + v%10)
		v /= 10
	}
	return append(b, tmp[:width]...)
}
