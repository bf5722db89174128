package dhcpv6

import (
	"net/netip"
	"testing"
	"time"

	"github.com/soypat/wisun"
)

func TestServerEncodeReply(t *testing.T) {
	prefix := netip.MustParsePrefix("2001:db8::/64")
	s := NewServer(prefix, 8, time.Hour)
	client, err := s.Allocate(mustEUI(1), time.Now())
	if err != nil {
		t.Fatal(err)
	}

	payload := []byte{byte(MsgReply), 0, 0, 1}
	buf := make([]byte, 40+8+len(payload))
	frame, err := s.EncodeReply(buf, client, payload)
	if err != nil {
		t.Fatal(err)
	}
	if frame.DestinationAddr() == nil || netip.AddrFrom16(*frame.DestinationAddr()) != client {
		t.Fatalf("destination address mismatch")
	}
}

func TestRelayEncodeForward(t *testing.T) {
	link := netip.MustParseAddr("2001:db8::1")
	upstream := netip.MustParseAddr("2001:db8:ffff::1")
	r := NewRelay(link, upstream)

	payload := []byte{byte(MsgSolicit), 0, 0, 2}
	buf := make([]byte, 40+8+len(payload))
	frame, err := r.EncodeForward(buf, payload)
	if err != nil {
		t.Fatal(err)
	}
	if netip.AddrFrom16(*frame.SourceAddr()) != link {
		t.Fatalf("expected link address as source")
	}
	if netip.AddrFrom16(*frame.DestinationAddr()) != upstream {
		t.Fatalf("expected upstream as destination")
	}
}

func mustEUI(b byte) (eui wisun.EUI64) {
	eui[7] = b
	return eui
}
