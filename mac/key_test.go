package mac

import (
	"testing"

	"github.com/soypat/wisun"
)

func TestDeviceCounterReplayRejected(t *testing.T) {
	dt := NewDeviceTable()
	eui := wisun.EUI64{1, 2, 3, 4, 5, 6, 7, 8}
	idx := dt.Install(eui, 0x1234, nil)
	dev := dt.Get(idx)

	if err := dev.CheckAndAdvanceCounter(0, 10); err != nil {
		t.Fatalf("first counter 10 rejected: %v", err)
	}
	if err := dev.CheckAndAdvanceCounter(0, 10); err != wisun.ErrCounterError {
		t.Fatalf("replayed counter 10 not rejected: %v", err)
	}
	if err := dev.CheckAndAdvanceCounter(0, 11); err != nil {
		t.Fatalf("counter 11 rejected: %v", err)
	}
}

func TestNeighborTableReuseAndRemoval(t *testing.T) {
	tbl := NewTable(2)
	var removed []attrIndex
	tbl.OnRemoved = func(idx attrIndex, n Neighbor) { removed = append(removed, idx) }

	eui1 := wisun.EUI64{1}
	eui2 := wisun.EUI64{2}
	idx1, err := tbl.Insert(Neighbor{EUI64: eui1})
	if err != nil {
		t.Fatal(err)
	}
	idx2, err := tbl.Insert(Neighbor{EUI64: eui2})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.Insert(Neighbor{EUI64: wisun.EUI64{3}}); err != ErrTableFull {
		t.Fatalf("expected table full, got %v", err)
	}
	tbl.Remove(idx1)
	if len(removed) != 1 || removed[0] != idx1 {
		t.Fatalf("OnRemoved not fired correctly: %v", removed)
	}
	idx3, err := tbl.Insert(Neighbor{EUI64: wisun.EUI64{3}})
	if err != nil {
		t.Fatal(err)
	}
	if idx3 != idx1 {
		t.Fatalf("expected freed slot %d reused, got %d", idx1, idx3)
	}
	if _, ok := tbl.Lookup(eui2); !ok {
		t.Fatalf("idx2 entry %d lost", idx2)
	}
}

func TestKeyTableActiveGTKLookup(t *testing.T) {
	kt := NewKeyTable()
	idx := kt.Install(KeyDescriptor{Kind: KeyKindGTK, Index: 1, Key: [16]byte{0x11}})
	got, ok := kt.FindActiveGTK(1)
	if !ok || got != idx {
		t.Fatalf("got %d %v want %d true", got, ok, idx)
	}
	if _, ok := kt.FindActiveGTK(2); ok {
		t.Fatal("unexpected match for unused GTK index")
	}
}
