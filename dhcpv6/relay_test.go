package dhcpv6

import (
	"net/netip"
	"testing"
)

func TestRelayWrapUnwrapRoundTrip(t *testing.T) {
	link := netip.MustParseAddr("2001:db8::1")
	upstream := netip.MustParseAddr("2001:db8:ffff::1")
	r := NewRelay(link, upstream)

	peer := netip.MustParseAddr("2001:db8::dead")
	clientMsg := []byte{1, 2, 3}
	fwd, err := r.WrapForward(peer, clientMsg, 0)
	if err != nil {
		t.Fatal(err)
	}
	if fwd.HopCount != 1 || fwd.LinkAddr != link {
		t.Fatalf("unexpected envelope: %+v", fwd)
	}

	reply := RelayMessage{Type: RelayReply, PeerAddr: peer, Inner: []byte{4, 5, 6}}
	inner, gotPeer, err := r.Unwrap(reply)
	if err != nil {
		t.Fatal(err)
	}
	if gotPeer != peer || len(inner) != 3 {
		t.Fatalf("unexpected unwrap result: %v %v", gotPeer, inner)
	}
}

func TestRelayHopLimitExceeded(t *testing.T) {
	r := NewRelay(netip.MustParseAddr("2001:db8::1"), netip.MustParseAddr("2001:db8:ffff::1"))
	_, err := r.WrapForward(netip.MustParseAddr("2001:db8::2"), nil, maxRelayHops)
	if err != ErrRelayHopLimitExceeded {
		t.Fatalf("expected hop limit error, got %v", err)
	}
}
