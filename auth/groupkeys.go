package auth

import (
	"crypto/rand"
	"time"
)

const (
	maxGTK  = 4
	maxLGTK = 3
	// installFraction is the fraction of the active key's lifetime
	// consumed before a new key is installed (§4.5 default 80%).
	installFraction = 0.8
)

// GroupKey is one GTK or LGTK slot's lifecycle state.
type GroupKey struct {
	Index     uint8
	Key       [16]byte
	Active    bool
	InstallAt time.Time
	ExpireAt  time.Time
}

// GroupKeyRing manages the border router's 4 GTKs and 3 LGTKs: which slot
// is currently active, when the next one installs, and revocation (§4.5
// Group-key lifecycle, §8 scenario 5).
type GroupKeyRing struct {
	gtk      [maxGTK]GroupKey
	lgtk     [maxLGTK]GroupKey
	lifetime time.Duration // configured GTK/LGTK expiry offset.

	// OnKeysChanged fires whenever the active key set changes, wired to
	// the management layer's "reset PC/LPC trickle" action (§4.5).
	OnKeysChanged func()
}

// NewGroupKeyRing creates a ring with the given key lifetime and installs
// an initial GTK at index 0 and LGTK at index 0.
func NewGroupKeyRing(lifetime time.Duration, now time.Time) (*GroupKeyRing, error) {
	r := &GroupKeyRing{lifetime: lifetime}
	gtk, err := randomKey()
	if err != nil {
		return nil, err
	}
	lgtk, err := randomKey()
	if err != nil {
		return nil, err
	}
	r.gtk[0] = GroupKey{Index: 0, Key: gtk, Active: true, InstallAt: now, ExpireAt: now.Add(lifetime)}
	r.lgtk[0] = GroupKey{Index: 0, Key: lgtk, Active: true, InstallAt: now, ExpireAt: now.Add(lifetime)}
	return r, nil
}

// ActiveGTK returns the currently active GTK.
func (r *GroupKeyRing) ActiveGTK() GroupKey { return r.activeOf(r.gtk[:]) }

// ActiveLGTK returns the currently active LGTK.
func (r *GroupKeyRing) ActiveLGTK() GroupKey { return r.activeOf(r.lgtk[:]) }

func (r *GroupKeyRing) activeOf(ring []GroupKey) GroupKey {
	for _, k := range ring {
		if k.Active {
			return k
		}
	}
	return GroupKey{}
}

// Hashes returns the 8-byte truncated hash of each slot whose key is
// marked Active, in the layout PCFrame.GTKHashes/LGTKHashes expect, zero
// for every other slot.
func (r *GroupKeyRing) Hashes() (gtk [4][8]byte, lgtk [3][8]byte) {
	for i, k := range r.gtk {
		if k.Active {
			copy(gtk[i][:], keyHash(k.Key))
		}
	}
	for i, k := range r.lgtk {
		if k.Active {
			copy(lgtk[i][:], keyHash(k.Key))
		}
	}
	return gtk, lgtk
}

// Tick installs a new key when the active GTK/LGTK has consumed
// installFraction of its lifetime (§4.5), and retires any key whose
// ExpireAt has passed. Returns true if the active key set changed.
func (r *GroupKeyRing) Tick(now time.Time) (bool, error) {
	changed := false
	if c, err := r.tickRing(r.gtk[:], now); err != nil {
		return false, err
	} else {
		changed = changed || c
	}
	if c, err := r.tickRing(r.lgtk[:], now); err != nil {
		return false, err
	} else {
		changed = changed || c
	}
	if changed && r.OnKeysChanged != nil {
		r.OnKeysChanged()
	}
	return changed, nil
}

func (r *GroupKeyRing) tickRing(ring []GroupKey, now time.Time) (bool, error) {
	activeIdx := -1
	for i, k := range ring {
		if k.Active {
			activeIdx = i
		}
		if k.Active && now.After(k.ExpireAt) {
			ring[i].Active = false
		}
	}
	if activeIdx < 0 {
		return false, nil
	}
	active := ring[activeIdx]
	lifespan := active.ExpireAt.Sub(active.InstallAt)
	elapsed := now.Sub(active.InstallAt)
	if float64(elapsed) < installFraction*float64(lifespan) {
		return false, nil
	}
	nextIdx := (activeIdx + 1) % len(ring)
	if ring[nextIdx].Active {
		return false, nil // next slot already holds the upcoming key.
	}
	key, err := randomKey()
	if err != nil {
		return false, err
	}
	ring[nextIdx] = GroupKey{Index: uint8(nextIdx), Key: key, Active: true, InstallAt: now, ExpireAt: now.Add(r.lifetime)}
	return true, nil
}

// Revoke shortens the active GTK's remaining lifetime to window,
// forcing all supplicants to rekey before it expires or be evicted
// (§4.5 Revocation, §8 scenario 5).
func (r *GroupKeyRing) Revoke(now time.Time, window time.Duration) error {
	for i, k := range r.gtk {
		if k.Active {
			r.gtk[i].ExpireAt = now.Add(window)
		}
	}
	key, err := randomKey()
	if err != nil {
		return err
	}
	nextIdx := -1
	for i, k := range r.gtk {
		if !k.Active {
			nextIdx = i
			break
		}
	}
	if nextIdx < 0 {
		nextIdx = 0
	}
	r.gtk[nextIdx] = GroupKey{Index: uint8(nextIdx), Key: key, Active: true, InstallAt: now, ExpireAt: now.Add(r.lifetime)}
	if r.OnKeysChanged != nil {
		r.OnKeysChanged()
	}
	return nil
}

func randomKey() ([16]byte, error) {
	var k [16]byte
	_, err := rand.Read(k[:])
	return k, err
}

func keyHash(key [16]byte) []byte {
	// Truncated FNV-1a over the key bytes: cheap, deterministic, and
	// sufficient for the "did the hash change" comparison PC frames use
	// (§4.4); not a security primitive.
	var h uint64 = 14695981039346656037
	for _, b := range key {
		h ^= uint64(b)
		h *= 1099511628211
	}
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = byte(h >> (8 * i))
	}
	return out
}
