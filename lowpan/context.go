// Package lowpan implements the 6LoWPAN adaptation layer above the MAC:
// IPHC (RFC 6282) header compression against a context table, and
// fragmentation/reassembly for datagrams longer than the link MTU (§4.7).
package lowpan

import (
	"errors"
	"net/netip"
)

var ErrContextFull = errors.New("lowpan: context table full")

const maxContexts = 16

// Context is one entry of the context table the border router publishes
// to descendants (§4.7 "Context table update"): a prefix indexed 0-15,
// with a compress flag and a TTL measured in 100ms ticks.
type Context struct {
	ID         uint8
	Prefix     netip.Prefix
	Compress   bool // usable for compression; cleared first on expiry.
	ttlTicks   uint32
	graceTicks uint32 // remaining decompression-only grace period.
	inUse      bool
}

// Table is the border router's 16-slot context table (§4.7).
type Table struct {
	entries [maxContexts]Context
	// graceTicks is "two router-advertisement lifetimes", expressed in
	// 100ms ticks at install time.
	graceTicks uint32
}

// NewTable creates a context table whose grace period (RFC 6282's "two
// RA lifetimes") is graceTicks 100ms ticks long.
func NewTable(graceTicks uint32) *Table {
	return &Table{graceTicks: graceTicks}
}

// Install publishes or refreshes context id with the given prefix and
// main lifetime (in 100ms ticks).
func (t *Table) Install(id uint8, prefix netip.Prefix, ttlTicks uint32) error {
	if id >= maxContexts {
		return ErrContextFull
	}
	t.entries[id] = Context{ID: id, Prefix: prefix, Compress: true, ttlTicks: ttlTicks, inUse: true}
	return nil
}

// Tick decrements each installed context's TTL by one 100ms tick (§5
// canonical timer resolution). When the main lifetime expires, Compress
// is cleared but the entry is retained for graceTicks more so in-flight
// decompression of already-compressed packets still resolves; after the
// grace period too, the entry is freed entirely (§4.7).
func (t *Table) Tick() {
	for i := range t.entries {
		c := &t.entries[i]
		if !c.inUse {
			continue
		}
		if c.ttlTicks > 0 {
			c.ttlTicks--
			if c.ttlTicks == 0 {
				c.Compress = false
				c.graceTicks = t.graceTicks
			}
			continue
		}
		if c.graceTicks > 0 {
			c.graceTicks--
			if c.graceTicks == 0 {
				*c = Context{}
			}
		}
	}
}

// ByID returns context id if it is still retained (main lifetime or
// grace period), for decompression lookups.
func (t *Table) ByID(id uint8) (Context, bool) {
	if id >= maxContexts || !t.entries[id].inUse {
		return Context{}, false
	}
	return t.entries[id], true
}

// MatchPrefix returns the longest-prefix-matching context usable for
// compression (Compress must be set), for outbound IPHC encoding.
func (t *Table) MatchPrefix(addr netip.Addr) (Context, bool) {
	best := -1
	bestLen := -1
	for i, c := range t.entries {
		if !c.inUse || !c.Compress {
			continue
		}
		if c.Prefix.Contains(addr) && c.Prefix.Bits() > bestLen {
			best, bestLen = i, c.Prefix.Bits()
		}
	}
	if best < 0 {
		return Context{}, false
	}
	return t.entries[best], true
}
