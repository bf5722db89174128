package wisun

import "testing"

func TestDefaultProfilesParses(t *testing.T) {
	t.Parallel()
	p := DefaultProfiles()
	if len(p.Domains) == 0 {
		t.Fatal("expected at least one domain in embedded profile table")
	}
	na, ok := p.Domain("NA")
	if !ok {
		t.Fatal("expected NA domain present")
	}
	plan, ok := na.ChannelPlan(1)
	if !ok {
		t.Fatal("expected class 1 channel plan present for NA")
	}
	freq, err := plan.ChannelFreqKHz(0)
	if err != nil || freq != plan.Ch0KHz {
		t.Fatalf("expected channel 0 frequency == Ch0KHz, got %d err %v", freq, err)
	}
}

func TestChannelFreqOutOfRange(t *testing.T) {
	t.Parallel()
	p := DefaultProfiles()
	na, _ := p.Domain("NA")
	plan, _ := na.ChannelPlan(1)
	if _, err := plan.ChannelFreqKHz(plan.ChannelCount); err == nil {
		t.Fatal("expected error for out-of-range channel")
	}
}

func TestSizePresetLookup(t *testing.T) {
	t.Parallel()
	p := DefaultProfiles()
	s, ok := p.Size("SMALL")
	if !ok {
		t.Fatal("expected SMALL size preset present")
	}
	if s.K == 0 {
		t.Fatal("expected nonzero trickle k in SMALL preset")
	}
	if _, ok := p.Size("nonexistent"); ok {
		t.Fatal("expected lookup miss for unknown size preset")
	}
}
