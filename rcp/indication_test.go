package rcp

import (
	"bytes"
	"testing"

	"github.com/soypat/wisun"
)

func TestDataIndicationRoundTrip(t *testing.T) {
	want := DataIndication{
		Src:       wisun.EUI64{1, 2, 3, 4, 5, 6, 7, 8},
		KeyIndex:  3,
		SecLevel:  7,
		Counter:   0xdeadbeef,
		HeaderIEs: []byte{0xaa, 0xbb},
		Payload:   []byte{0x60, 0x01, 0x02, 0x03},
		RSSI:      -72,
		LQI:       200,
	}
	got, err := DecodeDataIndication(EncodeDataIndication(want))
	if err != nil {
		t.Fatal(err)
	}
	if got.Src != want.Src || got.KeyIndex != want.KeyIndex || got.SecLevel != want.SecLevel ||
		got.Counter != want.Counter || got.RSSI != want.RSSI || got.LQI != want.LQI {
		t.Fatalf("scalar fields mismatch: got %+v want %+v", got, want)
	}
	if !bytes.Equal(got.HeaderIEs, want.HeaderIEs) || !bytes.Equal(got.Payload, want.Payload) {
		t.Fatalf("byte fields mismatch: got %+v want %+v", got, want)
	}
}
