package codec

import "testing"

func TestRoundTripPrimitives(t *testing.T) {
	e := NewEncoder()
	e.PutU8(7)
	e.PutU32(123456)
	e.PutU64(9876543210)
	e.PutF32(0.5)
	e.PutString("hello world")
	e.PutBytes([]byte{1, 2, 3})

	d := NewDecoder(e.Bytes())

	if v, err := d.U8(); err != nil || v != 7 {
		t.Fatalf("U8: got %d, %v", v, err)
	}
	if v, err := d.U32(); err != nil || v != 123456 {
		t.Fatalf("U32: got %d, %v", v, err)
	}
	if v, err := d.U64(); err != nil || v != 9876543210 {
		t.Fatalf("U64: got %d, %v", v, err)
	}
	if v, err := d.F32(true); err != nil || v != 0.5 {
		t.Fatalf("F32: got %v, %v", v, err)
	}
	if v, err := d.String(); err != nil || v != "hello world" {
		t.Fatalf("String: got %q, %v", v, err)
	}
	if v, err := d.Bytes(); err != nil || string(v) != "\x01\x02\x03" {
		t.Fatalf("Bytes: got %v, %v", v, err)
	}
	if d.Offset() != e.Len() {
		t.Fatalf("decode offset %d does not match encoded length %d", d.Offset(), e.Len())
	}
}

func TestNonFiniteFloatRejected(t *testing.T) {
	e := NewEncoder()
	e.PutF32(float32(nan()))
	d := NewDecoder(e.Bytes())
	if _, err := d.F32(true); err == nil {
		t.Fatalf("expected corruption error for NaN float")
	}
	d2 := NewDecoder(e.Bytes())
	if _, err := d2.F32(false); err != nil {
		t.Fatalf("did not expect error when finiteness is not required: %v", err)
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestTruncatedBufferIsCorrupt(t *testing.T) {
	e := NewEncoder()
	e.PutString("abcdef")
	truncated := e.Bytes()[:len(e.Bytes())-2]
	d := NewDecoder(truncated)
	if _, err := d.String(); err == nil {
		t.Fatalf("expected corruption error for truncated buffer")
	}
}

func TestImplausibleCountRejected(t *testing.T) {
	e := NewEncoder()
	e.PutU64(1 << 40)
	d := NewDecoder(e.Bytes())
	if _, err := d.Count(); err == nil {
		t.Fatalf("expected corruption error for implausible count")
	}
}
