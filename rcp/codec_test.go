package rcp

import "testing"

func TestCodecRoundTrip(t *testing.T) {
	var e Encoder
	e.PutBool(true)
	e.PutU8(0xAB)
	e.PutU16(0x1234)
	e.PutU32(0xdeadbeef)
	e.PutVaruint(300)
	e.PutFixed([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	e.PutBlob([]byte("hello"))

	d := NewDecoder(e.Bytes())
	b, err := d.Bool()
	if err != nil || b != true {
		t.Fatalf("bool: %v %v", b, err)
	}
	u8, err := d.U8()
	if err != nil || u8 != 0xAB {
		t.Fatalf("u8: %v %v", u8, err)
	}
	u16, err := d.U16()
	if err != nil || u16 != 0x1234 {
		t.Fatalf("u16: %v %v", u16, err)
	}
	u32, err := d.U32()
	if err != nil || u32 != 0xdeadbeef {
		t.Fatalf("u32: %v %v", u32, err)
	}
	v, err := d.Varuint()
	if err != nil || v != 300 {
		t.Fatalf("varuint: %v %v", v, err)
	}
	fixed, err := d.Fixed(8)
	if err != nil || len(fixed) != 8 || fixed[7] != 8 {
		t.Fatalf("fixed: %v %v", fixed, err)
	}
	blob, err := d.Blob()
	if err != nil || string(blob) != "hello" {
		t.Fatalf("blob: %q %v", blob, err)
	}
	if d.Remaining() != 0 {
		t.Fatalf("expected fully consumed decoder, %d bytes left", d.Remaining())
	}
}

func TestDecoderShortBuffer(t *testing.T) {
	d := NewDecoder([]byte{1})
	if _, err := d.U32(); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}

func TestVaruintMultiByte(t *testing.T) {
	var e Encoder
	e.PutVaruint(0)
	e.PutVaruint(127)
	e.PutVaruint(128)
	e.PutVaruint(1 << 20)
	d := NewDecoder(e.Bytes())
	for _, want := range []uint32{0, 127, 128, 1 << 20} {
		got, err := d.Varuint()
		if err != nil || got != want {
			t.Fatalf("got %d want %d err %v", got, want, err)
		}
	}
}
