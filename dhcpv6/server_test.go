package dhcpv6

import (
	"net/netip"
	"testing"
	"time"

	"github.com/soypat/wisun"
)

func TestAllocateDeterministicAcrossReboot(t *testing.T) {
	prefix := netip.MustParsePrefix("2001:db8::/64")
	s1 := NewServer(prefix, 10, time.Hour)
	eui := wisun.EUI64{1, 2, 3, 4, 5, 6, 7, 8}
	now := time.Unix(0, 0)

	addr1, err := s1.Allocate(eui, now)
	if err != nil {
		t.Fatal(err)
	}

	s2 := NewServer(prefix, 10, time.Hour) // simulates a reboot: fresh server, same prefix.
	addr2, err := s2.Allocate(eui, now)
	if err != nil {
		t.Fatal(err)
	}
	if addr1 != addr2 {
		t.Fatalf("expected deterministic address across reboot: %v != %v", addr1, addr2)
	}
	if !prefix.Contains(addr1) {
		t.Fatalf("expected address %v within prefix %v", addr1, prefix)
	}
}

func TestAllocateNoAddrsAvailWhenFull(t *testing.T) {
	prefix := netip.MustParsePrefix("2001:db8::/64")
	s := NewServer(prefix, 1, time.Hour)
	now := time.Unix(0, 0)
	if _, err := s.Allocate(wisun.EUI64{1}, now); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Allocate(wisun.EUI64{2}, now); err != ErrNoAddrsAvail {
		t.Fatalf("expected ErrNoAddrsAvail, got %v", err)
	}
}

func TestLeaseExpiryReclaimsSlot(t *testing.T) {
	prefix := netip.MustParsePrefix("2001:db8::/64")
	s := NewServer(prefix, 1, time.Second)
	now := time.Unix(0, 0)
	s.Allocate(wisun.EUI64{1}, now)
	if n := s.ExpireLeases(now.Add(2 * time.Second)); n != 1 {
		t.Fatalf("expected 1 lease expired, got %d", n)
	}
	if _, err := s.Allocate(wisun.EUI64{2}, now.Add(2*time.Second)); err != nil {
		t.Fatalf("expected slot reclaimed after expiry: %v", err)
	}
}

func TestLookupByAddrBidirectional(t *testing.T) {
	prefix := netip.MustParsePrefix("2001:db8::/64")
	s := NewServer(prefix, 10, time.Hour)
	eui := wisun.EUI64{7}
	addr, _ := s.Allocate(eui, time.Unix(0, 0))
	got, ok := s.LookupByAddr(addr)
	if !ok || got != eui {
		t.Fatalf("got %v %v want %v true", got, ok, eui)
	}
}
