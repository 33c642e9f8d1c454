package wire

import "testing"

func TestLengthEncodedIntegerRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 250, 251, 0xfa, 0xfb, 0xffff, 0x10000, 0xffffff, 0x1000000, 1 << 40}
	for _, v := range cases {
		enc := AppendLengthEncodedInteger(nil, v)
		got, isNull, n := ReadLengthEncodedInteger(enc)
		if isNull {
			t.Fatalf("value %d: unexpectedly decoded as NULL", v)
		}
		if n != len(enc) {
			t.Fatalf("value %d: consumed %d bytes, want %d", v, n, len(enc))
		}
		if got != v {
			t.Fatalf("value %d: round-tripped to %d", v, got)
		}
	}
}

func TestLengthEncodedIntegerNull(t *testing.T) {
	_, isNull, n := ReadLengthEncodedInteger([]byte{lencNull})
	if !isNull || n != 1 {
		t.Fatalf("got isNull=%v n=%d, want true,1", isNull, n)
	}
}

func TestLengthEncodedStringRoundTrip(t *testing.T) {
	want := []byte("hello, world")
	enc := AppendLengthEncodedString(nil, want)
	got, isNull, n, err := ReadLengthEncodedString(enc)
	if err != nil {
		t.Fatal(err)
	}
	if isNull {
		t.Fatal("unexpectedly NULL")
	}
	if n != len(enc) {
		t.Fatalf("consumed %d, want %d", n, len(enc))
	}
	if string(got) != string(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSkipLengthEncodedString(t *testing.T) {
	enc := AppendLengthEncodedString(nil, []byte("abc"))
	enc = append(enc, 0xAA, 0xBB) // trailing bytes that should not be consumed
	n, err := SkipLengthEncodedString(enc)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("skip length = %d, want 4", n)
	}
}
