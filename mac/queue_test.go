package mac

import (
	"testing"
	"time"

	"github.com/soypat/wisun"
)

func TestQueueBackpressure(t *testing.T) {
	q := NewQueue(2)
	r1 := &TxRequest{Handle: 1, Priority: wisun.PriorityNormal}
	r2 := &TxRequest{Handle: 2, Priority: wisun.PriorityNormal}
	r3 := &TxRequest{Handle: 3, Priority: wisun.PriorityNormal}
	if err := q.Enqueue(r1, false); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(r2, false); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(r3, false); err != wisun.ErrTransactionOverflow {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestQueuePriorityOrdering(t *testing.T) {
	q := NewQueue(0)
	q.Enqueue(&TxRequest{Handle: 1, Priority: wisun.PriorityNormal}, false)
	q.Enqueue(&TxRequest{Handle: 2, Priority: wisun.PriorityImmediate}, false)
	q.Enqueue(&TxRequest{Handle: 3, Priority: wisun.PriorityHigh}, false)

	r, ok := q.DequeueUnicast()
	if !ok || r.Handle != 2 {
		t.Fatalf("expected immediate-priority handle 2 first, got %+v", r)
	}
	r, ok = q.DequeueUnicast()
	if !ok || r.Handle != 3 {
		t.Fatalf("expected high-priority handle 3 second, got %+v", r)
	}
	r, ok = q.DequeueUnicast()
	if !ok || r.Handle != 1 {
		t.Fatalf("expected normal-priority handle 1 last, got %+v", r)
	}
}

func TestQueuePurgeInvalidHandle(t *testing.T) {
	q := NewQueue(0)
	q.Enqueue(&TxRequest{Handle: 1, Priority: wisun.PriorityNormal}, false)
	if err := q.Purge(1); err != nil {
		t.Fatalf("purge existing handle: %v", err)
	}
	if err := q.Purge(1); err != wisun.ErrInvalidHandle {
		t.Fatalf("expected ErrInvalidHandle on already-purged handle, got %v", err)
	}
}

func TestQueueIndirectExpiry(t *testing.T) {
	q := NewQueue(0)
	dst := wisun.EUI64{9}
	req := &TxRequest{Handle: 1, Dst: dst, Indirect: true, TTL: time.Millisecond}
	q.Enqueue(req, false)
	time.Sleep(5 * time.Millisecond)
	expired := q.ExpireIndirect(time.Now())
	if len(expired) != 1 || expired[0].Handle != 1 {
		t.Fatalf("expected handle 1 expired, got %+v", expired)
	}
	if _, ok := q.ReleaseIndirect(dst); ok {
		t.Fatal("expired entry should not be releasable")
	}
}
