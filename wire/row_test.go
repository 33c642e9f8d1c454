package wire

import "testing"

func buildBinaryRow(cols []Column, vals []Value) []byte {
	data := []byte{0x00}
	maskLen := (len(cols) + 7 + 2) / 8
	mask := make([]byte, maskLen)
	for i, v := range vals {
		if v.Null {
			bit := uint(i + 2)
			mask[bit/8] |= 1 << (bit % 8)
		}
	}
	data = append(data, mask...)
	for i, col := range cols {
		v := vals[i]
		if v.Null {
			continue
		}
		switch col.FieldType {
		case FieldTypeTiny:
			data = append(data, byte(v.I64))
		case FieldTypeLong:
			data = append(data, appendUint32(v.I64)...)
		case FieldTypeLongLong:
			data = appendUint64(data, uint64(v.I64))
		case FieldTypeString:
			data = AppendLengthEncodedString(data, v.Bytes)
		}
	}
	return data
}

func appendUint32(v int64) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func TestDecodeBinaryRowRoundTrip(t *testing.T) {
	cols := []Column{
		{FieldType: FieldTypeTiny, Flags: FlagNotNull},
		{FieldType: FieldTypeLongLong},
		{FieldType: FieldTypeString},
	}
	vals := []Value{
		{I64: 42},
		{Null: true},
		{Bytes: []byte("hi")},
	}
	data := buildBinaryRow(cols, vals)
	dest := make([]Value, len(cols))
	if err := DecodeBinaryRow(data, cols, dest); err != nil {
		t.Fatal(err)
	}
	if dest[0].I64 != 42 {
		t.Fatalf("col0 = %d, want 42", dest[0].I64)
	}
	if !dest[1].Null {
		t.Fatal("col1 should be NULL")
	}
	if string(dest[2].Bytes) != "hi" {
		t.Fatalf("col2 = %q, want hi", dest[2].Bytes)
	}
}

func TestDecodeBinaryRowUnsignedTiny(t *testing.T) {
	cols := []Column{{FieldType: FieldTypeTiny, Flags: FlagUnsigned}}
	data := []byte{0x00, 0x00, 0xF8} // row indicator, null bitmap (1 byte for 1 col), value 248
	dest := make([]Value, 1)
	if err := DecodeBinaryRow(data, cols, dest); err != nil {
		t.Fatal(err)
	}
	if dest[0].U64 != 248 {
		t.Fatalf("got %d, want 248", dest[0].U64)
	}
}
