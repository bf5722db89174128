package rcp

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestHDLCRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x01},
		{0x00, 0x00, 0x00},
		{0x7e, 0x7d, 0x20, 0xff},
		bytes.Repeat([]byte{0xaa, 0x7e, 0x7d, 0x55}, 16),
	}
	for _, payload := range cases {
		framed := Encode(nil, payload)
		if framed[0] != flagByte || framed[len(framed)-1] != flagByte {
			t.Fatalf("frame not delimited by flag bytes: %x", framed)
		}
		got, err := Decode(framed[1 : len(framed)-1])
		if err != nil {
			t.Fatalf("decode error for payload %x: %v", payload, err)
		}
		if !bytes.Equal(got, payload) && !(len(got) == 0 && len(payload) == 0) {
			t.Fatalf("round trip mismatch: got %x want %x", got, payload)
		}
	}
}

func TestHDLCRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		n := rng.Intn(64)
		payload := make([]byte, n)
		for j := range payload {
			payload[j] = byte(rng.Intn(256))
		}
		framed := Encode(nil, payload)
		got, err := Decode(framed[1 : len(framed)-1])
		if err != nil {
			t.Fatalf("decode error for payload %x: %v", payload, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("round trip mismatch: got %x want %x", got, payload)
		}
	}
}

func TestHDLCCorruptCRCDetected(t *testing.T) {
	framed := Encode(nil, []byte{1, 2, 3, 4})
	body := framed[1 : len(framed)-1]
	corrupt := append([]byte{}, body...)
	corrupt[0] ^= 0xff
	_, err := Decode(corrupt)
	if err != ErrCRCMismatch {
		t.Fatalf("expected ErrCRCMismatch, got %v", err)
	}
}

func TestScannerExtractsFrames(t *testing.T) {
	f1 := Encode(nil, []byte{1, 2, 3})
	f2 := Encode(nil, []byte{4, 5})
	stream := append(append([]byte{}, f1...), f2...)

	var s Scanner
	s.Feed(stream[:len(stream)/2])
	s.Feed(stream[len(stream)/2:])

	var got [][]byte
	for {
		frame, ok := s.Next()
		if !ok {
			break
		}
		payload, err := Decode(frame)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		got = append(got, payload)
	}
	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2", len(got))
	}
	if !bytes.Equal(got[0], []byte{1, 2, 3}) || !bytes.Equal(got[1], []byte{4, 5}) {
		t.Fatalf("got %x", got)
	}
}

func TestScannerSkipsKeepaliveFlags(t *testing.T) {
	f1 := Encode(nil, []byte{9})
	stream := append([]byte{flagByte, flagByte, flagByte}, f1...)
	var s Scanner
	s.Feed(stream)
	frame, ok := s.Next()
	if !ok {
		t.Fatal("expected one frame")
	}
	payload, err := Decode(frame)
	if err != nil || !bytes.Equal(payload, []byte{9}) {
		t.Fatalf("got %x err %v", payload, err)
	}
	if _, ok := s.Next(); ok {
		t.Fatal("expected no further frames")
	}
}
