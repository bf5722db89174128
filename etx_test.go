package wisun

import "testing"

func TestETXAccumulatorStartsAtUnity(t *testing.T) {
	a := NewETXAccumulator()
	if a.Float() != 1.0 {
		t.Fatalf("expected initial ETX 1.0, got %v", a.Float())
	}
}

func TestETXAccumulatorDegradesOnFailure(t *testing.T) {
	a := NewETXAccumulator()
	for i := 0; i < 10; i++ {
		a.Update(1, false)
	}
	if a.Value() != etxMax {
		t.Fatalf("expected ETX saturated at max after repeated failures, got %d", a.Value())
	}
}

func TestETXAccumulatorConvergesAfterInitPhase(t *testing.T) {
	a := NewETXAccumulator()
	for i := 0; i < 20; i++ {
		a.Update(1, true)
	}
	if a.Float() > 1.1 {
		t.Fatalf("expected ETX to stay near 1.0 for consistently acked single attempts, got %v", a.Float())
	}
}

func TestETXAccumulatorResetRestoresInitial(t *testing.T) {
	a := NewETXAccumulator()
	a.Update(1, false)
	a.Reset()
	if a.Float() != 1.0 {
		t.Fatalf("expected reset to restore ETX 1.0, got %v", a.Float())
	}
}
