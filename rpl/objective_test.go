package rpl

import (
	"testing"

	"github.com/soypat/wisun"
)

func TestRankIncrementAtUnityETX(t *testing.T) {
	e := wisun.NewETXAccumulator()
	if got := RankIncrement(e); got != minHopRankIncrease {
		t.Fatalf("expected %d at ETX 1.0, got %d", minHopRankIncrease, got)
	}
}

func TestRankIncrementScalesWithLoss(t *testing.T) {
	e := wisun.NewETXAccumulator()
	for i := 0; i < 10; i++ {
		e.Update(3, true)
	}
	got := RankIncrement(e)
	if got <= minHopRankIncrease {
		t.Fatalf("expected rank increment above baseline for a lossy link, got %d", got)
	}
}

func TestRankIncrementNilIsBaseline(t *testing.T) {
	if got := RankIncrement(nil); got != minHopRankIncrease {
		t.Fatalf("expected baseline for nil accumulator, got %d", got)
	}
}
