package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ParseColumnDefinition decodes one COM_STMT_PREPARE / COM_QUERY
// column-definition packet. Ground: go-sql-driver/mysql's readColumns —
// catalog/db/table/orig-table/orig-name are parsed only to skip past them.
func ParseColumnDefinition(data []byte) (Column, error) {
	pos, err := SkipLengthEncodedString(data) // catalog
	if err != nil {
		return Column{}, err
	}
	n, err := SkipLengthEncodedString(data[pos:]) // schema
	if err != nil {
		return Column{}, err
	}
	pos += n
	n, err = SkipLengthEncodedString(data[pos:]) // table
	if err != nil {
		return Column{}, err
	}
	pos += n
	n, err = SkipLengthEncodedString(data[pos:]) // orig table
	if err != nil {
		return Column{}, err
	}
	pos += n
	name, _, n, err := ReadLengthEncodedString(data[pos:]) // name
	if err != nil {
		return Column{}, err
	}
	pos += n
	n, err = SkipLengthEncodedString(data[pos:]) // orig name
	if err != nil {
		return Column{}, err
	}
	pos += n

	pos++ // filler (length-of-fixed-fields lenc, always 0x0c)
	if pos+2 > len(data) {
		return Column{}, ErrMalformedPacket
	}
	charset := binary.LittleEndian.Uint16(data[pos : pos+2])
	pos += 2
	pos += 4 // column length
	if pos+1 > len(data) {
		return Column{}, ErrMalformedPacket
	}
	ft := FieldType(data[pos])
	pos++
	if pos+2 > len(data) {
		return Column{}, ErrMalformedPacket
	}
	flags := FieldFlag(binary.LittleEndian.Uint16(data[pos : pos+2]))
	pos += 2
	var decimals byte
	if pos < len(data) {
		decimals = data[pos]
	}
	return Column{
		Name:      string(name),
		FieldType: ft,
		Flags:     flags,
		Charset:   charset,
		Decimals:  decimals,
	}, nil
}

// Value is a decoded column value. Exactly one of the typed fields is
// meaningful, selected by Null and the caller's knowledge of the column
// type. Value is what the binary row decoder produces per cell, and callers
// read it directly from rawconn.Row.Values; there are no typed getters.
type Value struct {
	Null  bool
	I64   int64
	U64   uint64
	F32   float32
	F64   float64
	Bytes []byte // borrowed from the packet buffer; copy before use across ops
}

// DecodeBinaryRow decodes one COM_STMT_EXECUTE binary-protocol row
// (spec §4.1 "Binary row") into dest, one Value per column in cols.
// Ground: go-sql-driver/mysql's binaryRows.readRow, generalized away from
// database/sql's driver.Value.
func DecodeBinaryRow(data []byte, cols []Column, dest []Value) error {
	if len(data) == 0 || data[0] != 0x00 {
		return ErrMalformedPacket
	}
	nullBitmapLen := (len(cols) + 7 + 2) / 8
	pos := 1 + nullBitmapLen
	if pos > len(data) {
		return ErrMalformedPacket
	}
	nullMask := data[1:pos]

	isNull := func(i int) bool {
		bit := uint(i + 2)
		return (nullMask[bit>>3]>>(bit&7))&1 == 1
	}

	for i, col := range cols {
		if isNull(i) {
			dest[i] = Value{Null: true}
			continue
		}
		switch col.FieldType {
		case FieldTypeNull:
			dest[i] = Value{Null: true}

		case FieldTypeTiny:
			if pos+1 > len(data) {
				return ErrMalformedPacket
			}
			if col.Unsigned() {
				dest[i] = Value{U64: uint64(data[pos])}
			} else {
				dest[i] = Value{I64: int64(int8(data[pos]))}
			}
			pos++

		case FieldTypeShort, FieldTypeYear:
			if pos+2 > len(data) {
				return ErrMalformedPacket
			}
			v := binary.LittleEndian.Uint16(data[pos : pos+2])
			if col.Unsigned() {
				dest[i] = Value{U64: uint64(v)}
			} else {
				dest[i] = Value{I64: int64(int16(v))}
			}
			pos += 2

		case FieldTypeInt24, FieldTypeLong:
			if pos+4 > len(data) {
				return ErrMalformedPacket
			}
			v := binary.LittleEndian.Uint32(data[pos : pos+4])
			if col.Unsigned() {
				dest[i] = Value{U64: uint64(v)}
			} else {
				dest[i] = Value{I64: int64(int32(v))}
			}
			pos += 4

		case FieldTypeLongLong:
			if pos+8 > len(data) {
				return ErrMalformedPacket
			}
			v := binary.LittleEndian.Uint64(data[pos : pos+8])
			if col.Unsigned() {
				dest[i] = Value{U64: v}
			} else {
				dest[i] = Value{I64: int64(v)}
			}
			pos += 8

		case FieldTypeFloat:
			if pos+4 > len(data) {
				return ErrMalformedPacket
			}
			dest[i] = Value{F32: math.Float32frombits(binary.LittleEndian.Uint32(data[pos : pos+4]))}
			pos += 4

		case FieldTypeDouble:
			if pos+8 > len(data) {
				return ErrMalformedPacket
			}
			dest[i] = Value{F64: math.Float64frombits(binary.LittleEndian.Uint64(data[pos : pos+8]))}
			pos += 8

		case FieldTypeDecimal, FieldTypeNewDecimal, FieldTypeVarChar, FieldTypeBit,
			FieldTypeEnum, FieldTypeSet, FieldTypeTinyBLOB, FieldTypeMediumBLOB,
			FieldTypeLongBLOB, FieldTypeBLOB, FieldTypeVarString, FieldTypeString,
			FieldTypeGeometry, FieldTypeJSON,
			FieldTypeDate, FieldTypeNewDate, FieldTypeTime, FieldTypeTimestamp, FieldTypeDateTime:
			buf, null, n, err := ReadLengthEncodedString(data[pos:])
			if err != nil {
				return err
			}
			pos += n
			if null {
				dest[i] = Value{Null: true}
			} else {
				dest[i] = Value{Bytes: buf}
			}

		default:
			return fmt.Errorf("wire: unknown field type %d", col.FieldType)
		}
	}
	return nil
}
