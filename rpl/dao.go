package rpl

import (
	"net/netip"
	"time"
)

// DAO is a parsed non-storing Downward Address Advertisement: a target
// option (the descendant's address), a transit information option (the
// descendant's parent's address) and that transit option's Path Lifetime,
// per §4.6 "DAO handling".
//
// Lifetime is in units of the DODAG's Cfg.LifetimeUnit, mirroring RFC
// 6550's Transit Information Option: 0 means "apply Cfg.DefaultLifetime"
// (the sender omitted an explicit override) and lifetimeInfinite never
// expires.
type DAO struct {
	Target   netip.Addr
	Parent   netip.Addr
	PathSeq  uint8
	Lifetime uint16
}

const (
	bytesPerChildEntry = 64 // rough accounting unit for MemoryLimits.
	lifetimeInfinite   = 0xffff
)

// HandleDAO aggregates one DAO into the child->parent map (§4.6). Returns
// ErrHardLimit if the hard memory limit would be exceeded (never true at
// a root, since CreateRoot always zeros Hard).
func (d *DODAG) HandleDAO(dao DAO, now time.Time) error {
	_, existed := d.children[dao.Target]
	if !existed {
		if d.limits.Hard > 0 && d.usedBytes+bytesPerChildEntry > d.limits.Hard {
			return ErrHardLimit
		}
		d.usedBytes += bytesPerChildEntry
	}
	d.children[dao.Target] = &child{
		target:  dao.Target,
		parent:  dao.Parent,
		learned: now,
		expires: d.childExpiry(dao.Lifetime, now),
	}
	d.pruneSoftLimit()
	return nil
}

// childExpiry computes the absolute time a child entry becomes stale, or
// the zero Time if it never expires.
func (d *DODAG) childExpiry(lifetime uint16, now time.Time) time.Time {
	if lifetime == 0 {
		lifetime = d.Cfg.DefaultLifetime
	}
	if lifetime == lifetimeInfinite || d.Cfg.LifetimeUnit == 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(lifetime) * time.Duration(d.Cfg.LifetimeUnit) * time.Second)
}

// ExpireDAOs drops every child entry whose DAO lifetime has elapsed as of
// now (§8 "Source routes emitted downward terminate at a descendant whose
// DAO is still live"; scenario 6 "if B's DAO expires, routes to A and C
// are withdrawn until B's DAO refreshes"). Returns the number of entries
// removed.
func (d *DODAG) ExpireDAOs(now time.Time) int {
	removed := 0
	for addr, c := range d.children {
		if !c.expires.IsZero() && !now.Before(c.expires) {
			delete(d.children, addr)
			d.usedBytes -= bytesPerChildEntry
			removed++
		}
	}
	return removed
}

// pruneSoftLimit evicts the least recently learned entries, one at a time,
// while usedBytes exceeds the soft limit; a root's hard limit never fires
// so this is the only eviction pressure. Entries are chosen by learn time
// alone: an entry whose lifetime has not elapsed is evicted just like an
// expired one.
func (d *DODAG) pruneSoftLimit() {
	if d.limits.Soft <= 0 || d.usedBytes <= d.limits.Soft {
		return
	}
	for d.usedBytes > d.limits.Soft {
		var oldestAddr netip.Addr
		var oldestTime time.Time
		first := true
		for addr, c := range d.children {
			if first || c.learned.Before(oldestTime) {
				oldestAddr, oldestTime, first = addr, c.learned, false
			}
		}
		if first {
			return // nothing left to prune.
		}
		delete(d.children, oldestAddr)
		d.usedBytes -= bytesPerChildEntry
	}
}

// SourceRoute computes the reverse path from dst back to the root (§4.6
// "the root computes a source route for any downward destination as the
// reverse path from destination to self"), returned as the ordered list
// of hop addresses a Routing Header would carry, ending with dst itself
// and excluding the root. A descendant whose DAO lifetime has elapsed is treated as
// unreachable rather than walked, even if ExpireDAOs has not yet swept it
// (§8 "terminate at a descendant whose DAO is still live").
func (d *DODAG) SourceRoute(dst netip.Addr, now time.Time) ([]netip.Addr, error) {
	var hops []netip.Addr
	cur := dst
	seen := make(map[netip.Addr]bool)
	for {
		c, ok := d.children[cur]
		if !ok || (!c.expires.IsZero() && !now.Before(c.expires)) {
			if cur == d.ID {
				break // reached the root: the walk is complete.
			}
			return nil, ErrUnreachable
		}
		if seen[cur] {
			return nil, ErrUnreachable // cycle guard: malformed DAO chain.
		}
		seen[cur] = true
		hops = append(hops, cur)
		cur = c.parent
		if cur == d.ID {
			break
		}
	}
	reverse(hops)
	return hops, nil
}

func reverse(s []netip.Addr) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// ChildCount reports the number of descendants currently retained, for
// the management-bus "DAO aggregation size" gauge.
func (d *DODAG) ChildCount() int { return len(d.children) }
