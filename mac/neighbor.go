// Package mac maintains the per-interface 802.15.4 MAC state the RCP
// delegates to the host: neighbor and device tables, key material, the
// outbound priority/indirect queues, and CCM* frame security (§4.2).
package mac

import (
	"errors"

	"github.com/soypat/wisun"
)

// ErrTableFull is returned when a table (neighbor, device, key) has no more
// free attribute-index slots.
var ErrTableFull = errors.New("mac: table full")

// attrIndex is a stable index into an arena-backed table, used instead of
// pointers so entries can be referenced across layers without exposing
// memory addresses (§9 Design Notes).
type attrIndex = uint16

const noIndex attrIndex = 0xffff

// Neighbor is one entry of the neighbor table: a peer the MAC layer has
// exchanged frames with or learned about from Wi-SUN management frames.
type Neighbor struct {
	EUI64     wisun.EUI64
	Short     wisun.ShortAddr
	Role      wisun.LinkRole
	NodeRole  wisun.NodeRole
	RSSI      int8
	RSL       uint8
	LinkLifetime uint32 // seconds remaining before expiry, decremented by the owning timer.

	// ModeSwitchPHYID and ModeSwitchOptIndex are carried on the entry but
	// nothing in this module sets or reads them (open question, see design
	// ledger).
	ModeSwitchPHYID    uint8
	ModeSwitchOptIndex uint8

	active bool
}

// RemovalFunc, if set as Table.OnRemoved, is invoked synchronously when an entry expires
// or is evicted, with the just-freed index, so upper layers (RPL, the
// authenticator) can null out any index they were holding rather than read
// stale/reused data (§9 Design Notes: manually freed structures).
type RemovalFunc func(idx attrIndex, n Neighbor)

// Table is an arena of Neighbor entries addressed by stable index.
type Table struct {
	entries    []Neighbor
	free       []attrIndex
	OnRemoved  RemovalFunc
	maxEntries int
}

// NewTable returns a Table that can hold up to capacity neighbors.
func NewTable(capacity int) *Table {
	return &Table{maxEntries: capacity}
}

// Lookup finds a neighbor by EUI-64, returning its index and ok=true if
// present.
func (t *Table) Lookup(eui wisun.EUI64) (attrIndex, bool) {
	for i := range t.entries {
		if t.entries[i].active && t.entries[i].EUI64 == eui {
			return attrIndex(i), true
		}
	}
	return noIndex, false
}

// LookupShort finds a neighbor by short address.
func (t *Table) LookupShort(short wisun.ShortAddr) (attrIndex, bool) {
	for i := range t.entries {
		if t.entries[i].active && t.entries[i].Short == short {
			return attrIndex(i), true
		}
	}
	return noIndex, false
}

// Get returns a pointer to the entry at idx. The pointer is invalidated by
// a subsequent call to Remove that reuses idx.
func (t *Table) Get(idx attrIndex) *Neighbor {
	return &t.entries[idx]
}

// Insert allocates a new neighbor entry, reusing a freed slot if one
// exists, and returns its stable index.
func (t *Table) Insert(n Neighbor) (attrIndex, error) {
	n.active = true
	if len(t.free) > 0 {
		idx := t.free[len(t.free)-1]
		t.free = t.free[:len(t.free)-1]
		t.entries[idx] = n
		return idx, nil
	}
	if t.maxEntries > 0 && len(t.entries) >= t.maxEntries {
		return noIndex, ErrTableFull
	}
	t.entries = append(t.entries, n)
	return attrIndex(len(t.entries) - 1), nil
}

// Remove frees idx's slot and fires OnRemoved before the slot can be reused.
func (t *Table) Remove(idx attrIndex) {
	if int(idx) >= len(t.entries) || !t.entries[idx].active {
		return
	}
	removed := t.entries[idx]
	t.entries[idx] = Neighbor{}
	t.free = append(t.free, idx)
	if t.OnRemoved != nil {
		t.OnRemoved(idx, removed)
	}
}

// Tick decrements every active entry's LinkLifetime by secs and removes
// entries that reach zero, called from the owning timer (e.g.
// event.TimerLowpanNeighbor).
func (t *Table) Tick(secs uint32) {
	for i := range t.entries {
		e := &t.entries[i]
		if !e.active || e.LinkLifetime == 0 {
			continue
		}
		if e.LinkLifetime <= secs {
			t.Remove(attrIndex(i))
		} else {
			e.LinkLifetime -= secs
		}
	}
}

// Len returns the number of active neighbor entries.
func (t *Table) Len() int {
	n := 0
	for i := range t.entries {
		if t.entries[i].active {
			n++
		}
	}
	return n
}
