package rpl

import (
	"net/netip"
	"testing"
	"time"
)

func TestSoftLimitPrunesOldest(t *testing.T) {
	d := CreateRoot(1, root, Config{}, MemoryLimits{Soft: bytesPerChildEntry * 2})
	now := time.Unix(0, 0)
	d.HandleDAO(DAO{Target: nodeA, Parent: root}, now)
	d.HandleDAO(DAO{Target: nodeB, Parent: root}, now.Add(time.Second))
	d.HandleDAO(DAO{Target: nodeC, Parent: root}, now.Add(2*time.Second))

	if d.ChildCount() != 2 {
		t.Fatalf("expected soft limit to cap at 2 entries, got %d", d.ChildCount())
	}
	if _, err := d.SourceRoute(nodeA, now); err != ErrUnreachable {
		t.Fatal("expected the oldest entry (nodeA) pruned first")
	}
	if _, err := d.SourceRoute(nodeC, now); err != nil {
		t.Fatalf("expected most recent entry retained: %v", err)
	}
}

func TestDAOExpiresByLifetime(t *testing.T) {
	d := CreateRoot(1, root, Config{DefaultLifetime: 10, LifetimeUnit: 1}, MemoryLimits{})
	now := time.Unix(0, 0)
	d.HandleDAO(DAO{Target: nodeA, Parent: root, Lifetime: 5}, now)
	d.HandleDAO(DAO{Target: nodeB, Parent: root, Lifetime: lifetimeInfinite}, now)

	if _, err := d.SourceRoute(nodeA, now.Add(4*time.Second)); err != nil {
		t.Fatalf("expected nodeA still live before its lifetime elapses: %v", err)
	}
	if _, err := d.SourceRoute(nodeA, now.Add(5*time.Second)); err != ErrUnreachable {
		t.Fatal("expected nodeA's route withdrawn once its DAO lifetime elapses")
	}
	if _, err := d.SourceRoute(nodeB, now.Add(time.Hour)); err != nil {
		t.Fatalf("expected infinite-lifetime nodeB to remain reachable: %v", err)
	}

	if n := d.ExpireDAOs(now.Add(5 * time.Second)); n != 1 {
		t.Fatalf("expected ExpireDAOs to sweep exactly nodeA, got %d", n)
	}
	if d.ChildCount() != 1 {
		t.Fatalf("expected one child (nodeB) remaining after sweep, got %d", d.ChildCount())
	}
}

func TestAdvertisePrefixAndRoute(t *testing.T) {
	d := CreateRoot(1, root, Config{}, MemoryLimits{})
	d.AdvertisePrefix(PrefixOption{Prefix: netip.MustParsePrefix("2001:db8::/64"), Lifetime: 3600})
	d.AdvertiseRoute(RouteOption{Prefix: netip.MustParsePrefix("2001:db9::/64"), Lifetime: 3600})
	if len(d.prefixes) != 1 || len(d.routes) != 1 {
		t.Fatal("expected one prefix and one route option recorded")
	}
}
