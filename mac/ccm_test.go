package mac

import "testing"

func TestAeadForCachesAndEvicts(t *testing.T) {
	h := NewHelper(nil, 4, 4, nil)

	var key [16]byte
	key[0] = 1
	a1, err := h.aeadFor(key, SecLevelMIC128)
	if err != nil {
		t.Fatal(err)
	}
	a2, err := h.aeadFor(key, SecLevelMIC128)
	if err != nil {
		t.Fatal(err)
	}
	if a1 != a2 {
		t.Fatal("expected cached AEAD instance to be reused")
	}

	// Push enough distinct keys to wrap the bounded ring past capacity;
	// this must not panic and older entries are simply evicted.
	for i := 0; i < maxCachedAEADKeys+4; i++ {
		var k [16]byte
		k[0] = byte(i + 2)
		if _, err := h.aeadFor(k, SecLevelMIC32); err != nil {
			t.Fatal(err)
		}
	}
}
