package event

import (
	"context"
	"testing"
	"time"
)

func TestLoopPriorityOrdering(t *testing.T) {
	l := NewLoop(nil)
	var order []string
	l.Post(PriorityLow, func() { order = append(order, "low") })
	l.Post(PriorityHigh, func() { order = append(order, "high") })
	l.Post(PriorityMedium, func() { order = append(order, "medium") })
	l.drain()
	want := []string{"high", "medium", "low"}
	if len(order) != len(want) {
		t.Fatalf("got %v want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v want %v", order, want)
		}
	}
}

func TestLoopDrainRunsPostedFollowups(t *testing.T) {
	l := NewLoop(nil)
	count := 0
	var again Handler
	again = func() {
		count++
		if count < 3 {
			l.Post(PriorityLow, again)
		}
	}
	l.Post(PriorityLow, again)
	l.drain()
	if count != 3 {
		t.Fatalf("got %d want 3", count)
	}
}

func TestLoopRunStopsOnContextCancel(t *testing.T) {
	l := NewLoop(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTimersFireAndReschedule(t *testing.T) {
	tm := NewTimers()
	defer tm.Stop()
	fires := 0
	tm.Register("test", 2*Tick, PriorityMedium, false, func() { fires++ })
	tm.advance(time.Now())
	if fires != 0 {
		t.Fatalf("fired too early: %d", fires)
	}
	tm.advance(time.Now())
	if fires != 1 {
		t.Fatalf("expected 1 fire, got %d", fires)
	}
	tm.Cancel("test")
	tm.advance(time.Now())
	tm.advance(time.Now())
	if fires != 1 {
		t.Fatalf("cancelled timer fired again: %d", fires)
	}
}

func TestTimersOneShot(t *testing.T) {
	tm := NewTimers()
	defer tm.Stop()
	fires := 0
	tm.Register("once", Tick, PriorityLow, true, func() { fires++ })
	tm.advance(time.Now())
	tm.advance(time.Now())
	if fires != 1 {
		t.Fatalf("one-shot fired %d times, want 1", fires)
	}
}
