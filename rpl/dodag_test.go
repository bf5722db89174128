package rpl

import (
	"net/netip"
	"testing"
	"time"
)

var (
	root  = netip.MustParseAddr("2001:db8::1")
	nodeA = netip.MustParseAddr("2001:db8::a")
	nodeB = netip.MustParseAddr("2001:db8::b")
	nodeC = netip.MustParseAddr("2001:db8::c")
)

func TestSourceRouteMultiHop(t *testing.T) {
	d := CreateRoot(1, root, Config{}, MemoryLimits{})
	now := time.Unix(0, 0)
	// C -> B -> A -> root
	if err := d.HandleDAO(DAO{Target: nodeA, Parent: root}, now); err != nil {
		t.Fatal(err)
	}
	if err := d.HandleDAO(DAO{Target: nodeB, Parent: nodeA}, now); err != nil {
		t.Fatal(err)
	}
	if err := d.HandleDAO(DAO{Target: nodeC, Parent: nodeB}, now); err != nil {
		t.Fatal(err)
	}

	route, err := d.SourceRoute(nodeC, now)
	if err != nil {
		t.Fatal(err)
	}
	want := []netip.Addr{nodeA, nodeB, nodeC}
	if len(route) != len(want) {
		t.Fatalf("got %v want %v", route, want)
	}
	for i := range want {
		if route[i] != want[i] {
			t.Fatalf("got %v want %v", route, want)
		}
	}
}

func TestSourceRouteUnreachable(t *testing.T) {
	d := CreateRoot(1, root, Config{}, MemoryLimits{})
	if _, err := d.SourceRoute(nodeA, time.Unix(0, 0)); err != ErrUnreachable {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestHardLimitDisabledAtRoot(t *testing.T) {
	d := CreateRoot(1, root, Config{}, MemoryLimits{Hard: 1}) // request ignored: root always runs hard=0.
	for i := 0; i < 100; i++ {
		addr := netip.AddrFrom16([16]byte{0: byte(i), 15: 1})
		if err := d.HandleDAO(DAO{Target: addr, Parent: root}, time.Unix(0, 0)); err != nil {
			t.Fatalf("unexpected hard-limit rejection at root: %v", err)
		}
	}
}

func TestPoisonEmitsThreeThenForcesLeaf(t *testing.T) {
	d := CreateRoot(1, root, Config{}, MemoryLimits{})
	d.Poison()
	count := 0
	for {
		rank, poisoning := d.NextPoisonDIORank()
		if !poisoning {
			break
		}
		if rank != rankInfinite {
			t.Fatalf("expected infinite rank during poison, got %d", rank)
		}
		count++
	}
	if count != 3 {
		t.Fatalf("expected exactly 3 poison DIOs, got %d", count)
	}
	if d.ShouldEmitDIO() {
		t.Fatal("expected DODAG to force leaf after poisoning")
	}
}

func TestVersionAndDTSNIncrement(t *testing.T) {
	d := CreateRoot(1, root, Config{}, MemoryLimits{})
	v, dtsn := d.Version, d.DTSN
	d.IncrementVersion()
	d.IncrementDTSN()
	if d.Version != v+1 || d.DTSN != dtsn+1 {
		t.Fatal("expected both counters to advance")
	}
}
