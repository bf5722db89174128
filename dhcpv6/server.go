// Package dhcpv6 implements a minimal DHCPv6 server for Wi-SUN node
// address assignment: deterministic EUI-64-derived /128 addresses under
// the border router's advertised prefix, and a bounded bidirectional
// lease table (§4.8).
package dhcpv6

import (
	"crypto/sha256"
	"errors"
	"net/netip"
	"time"

	"github.com/soypat/wisun"
)

var ErrNoAddrsAvail = errors.New("dhcpv6: no addresses available")

// MessageType mirrors the DHCPv6 message types this server handles
// (RFC 8415 §7.3); only the subset the spec names.
type MessageType uint8

const (
	MsgSolicit   MessageType = 1
	MsgAdvertise MessageType = 2
	MsgRequest   MessageType = 3
	MsgReply     MessageType = 7
)

// Lease is one EUI-64<->IPv6 binding (§3 DHCPv6 lease).
type Lease struct {
	EUI64    wisun.EUI64
	Addr     netip.Addr
	ExpireAt time.Time
}

// LeaseTable is the bidirectional EUI-64<->IPv6 map, bounded in size
// (§4.8 "Lease table").
type LeaseTable struct {
	byEUI  map[wisun.EUI64]*Lease
	byAddr map[netip.Addr]*Lease
	max    int
}

// NewLeaseTable creates a table bounded to max concurrent leases.
func NewLeaseTable(max int) *LeaseTable {
	return &LeaseTable{
		byEUI:  make(map[wisun.EUI64]*Lease),
		byAddr: make(map[netip.Addr]*Lease),
		max:    max,
	}
}

// Server assigns addresses under prefix, deterministically derived from
// a client's EUI-64 so repeat joins (e.g. after reboot) get the same
// address (§4.8 "Server behavior").
type Server struct {
	Prefix      netip.Prefix
	Leases      *LeaseTable
	LeaseTime   time.Duration
}

// NewServer creates a server handing out addresses under prefix.
func NewServer(prefix netip.Prefix, maxLeases int, leaseTime time.Duration) *Server {
	return &Server{Prefix: prefix, Leases: NewLeaseTable(maxLeases), LeaseTime: leaseTime}
}

// deriveIID computes the deterministic interface identifier for a client
// EUI-64 under prefix: SHA-256(prefix bytes || EUI-64), truncated to the
// host bits, which avoids any risk of an EUI-64-derived IID colliding
// across different advertised prefixes while staying fully deterministic
// per (prefix, EUI-64) pair (§4.8 "deterministically from the EUI-64").
func deriveIID(prefix netip.Prefix, eui wisun.EUI64) [16]byte {
	prefixBytes := prefix.Addr().As16()
	h := sha256.New()
	h.Write(prefixBytes[:])
	h.Write(eui[:])
	sum := h.Sum(nil)

	var out [16]byte
	copy(out[:], prefixBytes[:])
	hostBits := 128 - prefix.Bits()
	hostBytes := hostBits / 8
	copy(out[16-hostBytes:], sum[len(sum)-hostBytes:])
	return out
}

// Allocate assigns (or returns the existing deterministic) address for
// eui, inserting a lease if one doesn't already exist. Returns
// ErrNoAddrsAvail once the lease table is at capacity and eui is new
// (§4.8 "full table returns NoAddrsAvail").
func (s *Server) Allocate(eui wisun.EUI64, now time.Time) (netip.Addr, error) {
	if l, ok := s.Leases.byEUI[eui]; ok {
		l.ExpireAt = now.Add(s.LeaseTime)
		return l.Addr, nil
	}
	if len(s.Leases.byEUI) >= s.Leases.max {
		return netip.Addr{}, ErrNoAddrsAvail
	}
	addr := netip.AddrFrom16(deriveIID(s.Prefix, eui))
	l := &Lease{EUI64: eui, Addr: addr, ExpireAt: now.Add(s.LeaseTime)}
	s.Leases.byEUI[eui] = l
	s.Leases.byAddr[addr] = l
	return addr, nil
}

// HandleSolicit processes a SOLICIT (IA_NA + client DUID derived from
// eui), returning the address that would be advertised without
// committing it as a lease yet (RFC 8415 two-phase SOLICIT/REQUEST).
func (s *Server) HandleSolicit(eui wisun.EUI64) netip.Addr {
	return netip.AddrFrom16(deriveIID(s.Prefix, eui))
}

// HandleRequest processes a REQUEST, committing the lease and returning
// the REPLY address (§4.8 "reply with an ADVERTISE, then a REPLY on
// REQUEST").
func (s *Server) HandleRequest(eui wisun.EUI64, now time.Time) (netip.Addr, error) {
	return s.Allocate(eui, now)
}

// ExpireLeases reclaims leases past their lifetime (§4.8 "leases time out
// and are reclaimed"). Returns the number reclaimed.
func (s *Server) ExpireLeases(now time.Time) int {
	n := 0
	for eui, l := range s.Leases.byEUI {
		if now.After(l.ExpireAt) {
			delete(s.Leases.byEUI, eui)
			delete(s.Leases.byAddr, l.Addr)
			n++
		}
	}
	return n
}

// LookupByAddr resolves an assigned address back to its owning EUI-64.
func (s *Server) LookupByAddr(addr netip.Addr) (wisun.EUI64, bool) {
	l, ok := s.Leases.byAddr[addr]
	if !ok {
		return wisun.EUI64{}, false
	}
	return l.EUI64, true
}
