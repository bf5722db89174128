package lowpan

import (
	"net/netip"
	"testing"

	"github.com/soypat/wisun"
)

func TestIPHCRoundTripInlineAddresses(t *testing.T) {
	hdr := Header{
		TrafficClass: 0,
		FlowLabel:    0,
		NextHeader:   wisun.IPProtoUDP,
		HopLimit:     64,
		Src:          netip.MustParseAddr("2001:db8::1"),
		Dst:          netip.MustParseAddr("2001:db8::2"),
	}
	buf := Compress(nil, hdr, nil)
	out, n, err := Decompress(buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d, want %d", n, len(buf))
	}
	if out.NextHeader != hdr.NextHeader || out.HopLimit != hdr.HopLimit {
		t.Fatalf("got %+v want %+v", out, hdr)
	}
	if out.Src != hdr.Src || out.Dst != hdr.Dst {
		t.Fatalf("address mismatch: %v/%v vs %v/%v", out.Src, out.Dst, hdr.Src, hdr.Dst)
	}
}

func TestHeaderToWireFrame(t *testing.T) {
	hdr := Header{
		NextHeader: wisun.IPProtoUDP,
		HopLimit:   64,
		Src:        netip.MustParseAddr("2001:db8::1"),
		Dst:        netip.MustParseAddr("2001:db8::2"),
	}
	payload := []byte("hello")
	buf := make([]byte, 40+len(payload))
	frame, err := hdr.ToWireFrame(buf, payload)
	if err != nil {
		t.Fatal(err)
	}
	if frame.NextHeader() != hdr.NextHeader || frame.HopLimit() != hdr.HopLimit {
		t.Fatalf("header fields not set correctly: %+v", frame)
	}
	if string(frame.Payload()) != "hello" {
		t.Fatalf("expected payload preserved, got %q", frame.Payload())
	}
}

func TestIPHCRoundTripContextCompressedAddress(t *testing.T) {
	ctx := NewTable(200)
	prefix := netip.MustParsePrefix("2001:db8::/64")
	if err := ctx.Install(1, prefix, 1000); err != nil {
		t.Fatal(err)
	}
	hdr := Header{
		NextHeader: wisun.IPProtoIPv6ICMP,
		HopLimit:   255,
		Src:        netip.MustParseAddr("2001:db8::1111:2222:3333:4444"),
		Dst:        netip.MustParseAddr("2001:db8::5555:6666:7777:8888"),
	}
	buf := Compress(nil, hdr, ctx)
	out, _, err := DecompressWithContext(buf, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if out.Src != hdr.Src || out.Dst != hdr.Dst {
		t.Fatalf("address mismatch: %v/%v vs %v/%v", out.Src, out.Dst, hdr.Src, hdr.Dst)
	}
}

func TestContextGracePeriod(t *testing.T) {
	tbl := NewTable(3)
	prefix := netip.MustParsePrefix("2001:db8::/64")
	tbl.Install(2, prefix, 1)

	tbl.Tick() // ttl -> 0, compress cleared, grace starts
	if _, ok := tbl.MatchPrefix(netip.MustParseAddr("2001:db8::1")); ok {
		t.Fatal("expected context no longer usable for compression")
	}
	if _, ok := tbl.ByID(2); !ok {
		t.Fatal("expected context retained for decompression during grace period")
	}

	tbl.Tick()
	tbl.Tick()
	tbl.Tick()
	if _, ok := tbl.ByID(2); ok {
		t.Fatal("expected context freed after grace period elapses")
	}
}
