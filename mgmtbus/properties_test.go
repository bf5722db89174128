package mgmtbus

import "testing"

func TestGAKDeterministic(t *testing.T) {
	gtk := [16]byte{1, 2, 3}
	a := GAK("wisun-test", gtk)
	b := GAK("wisun-test", gtk)
	if a != b {
		t.Fatal("expected GAK deterministic for same inputs")
	}
	c := GAK("other-network", gtk)
	if a == c {
		t.Fatal("expected GAK to depend on network name")
	}
}
