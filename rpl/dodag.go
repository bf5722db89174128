// Package rpl roots a non-storing RPL DODAG over the mesh: it builds the
// DIO advertisement the border router emits, aggregates non-storing DAOs
// into a child->parent map, and computes source routes for downward
// traffic (§4.6).
package rpl

import (
	"errors"
	"net/netip"
	"time"
)

var (
	ErrNoRoot        = errors.New("rpl: no root installed")
	ErrUnreachable   = errors.New("rpl: destination not in DODAG")
	ErrHardLimit     = errors.New("rpl: hard memory limit reached")
)

// Mode Of Operation byte advertised in the DIO configuration option; this
// root only ever advertises non-storing (MOP 1).
const ModeNonStoring = 1

// Config is a DODAG's DIO timing/objective-function configuration (§3 RPL
// DODAG).
type Config struct {
	DIOIntervalMin uint8 // Imin exponent, per RFC 6550 trickle for DIOs.
	DIOIntervalMax uint8
	DIORedundancy  uint8 // k.
	DefaultLifetime uint16 // in units of Lifetime Unit, RFC 6550 §6.7.6.
	LifetimeUnit    uint16
	ObjectiveFn     uint16 // Objective Code Point, e.g. OF0=0, MRHOF=1.
}

// PrefixOption is a DIO Prefix Information Option (§4.6 "Advertise
// prefix").
type PrefixOption struct {
	Prefix   netip.Prefix
	Flags    uint8
	Lifetime uint32
}

// RouteOption is a DIO Route Information Option (§4.6 "Advertise route").
type RouteOption struct {
	Prefix   netip.Prefix
	Flags    uint8
	Lifetime uint32
}

// MemoryLimits bounds the retained RPL state: the root always runs with
// Hard == 0 (disabled), per §4.6 "for a root, hard limit is disabled
// because the root's own database must not be evicted".
type MemoryLimits struct {
	Soft int
	Hard int
}

// DODAG is a single RPL instance rooted at this border router (§3 RPL
// DODAG, §4.6). Only one root exists at a time; CreateRoot replaces any
// previous one.
type DODAG struct {
	InstanceID uint8
	ID         netip.Addr // our own global address.
	Cfg        Config
	Version    uint8
	DTSN       uint8

	prefixes []PrefixOption
	routes   []RouteOption

	forceLeaf bool
	poisoning int // remaining poison DIOs to emit, per "emit 3 DIOs with infinite rank".

	limits   MemoryLimits
	children map[netip.Addr]*child

	usedBytes int
}

type child struct {
	target  netip.Addr
	parent  netip.Addr
	learned time.Time
	expires time.Time // zero means never expires.
}

const rankInfinite = 0xffff

// CreateRoot installs a new DODAG rooted at id, discarding any previous
// one (§4.6 "Create root ... re-issuing removes the previous root").
func CreateRoot(instanceID uint8, id netip.Addr, cfg Config, limits MemoryLimits) *DODAG {
	return &DODAG{
		InstanceID: instanceID,
		ID:         id,
		Cfg:        cfg,
		Version:    1,
		limits:     MemoryLimits{Soft: limits.Soft, Hard: 0}, // hard limit disabled at the root.
		children:   make(map[netip.Addr]*child),
	}
}

// AdvertisePrefix updates the DIO Prefix Information Option advertised to
// descendants.
func (d *DODAG) AdvertisePrefix(p PrefixOption) { d.prefixes = append(d.prefixes, p) }

// AdvertiseRoute updates the DIO Route Information Option advertised to
// descendants.
func (d *DODAG) AdvertiseRoute(r RouteOption) { d.routes = append(d.routes, r) }

// ForceLeaf toggles DIO emission on/off (§4.6 "Force-leaf toggles DIO
// emission on/off").
func (d *DODAG) ForceLeaf(leaf bool) { d.forceLeaf = leaf }

// ShouldEmitDIO reports whether the DODAG currently advertises itself.
func (d *DODAG) ShouldEmitDIO() bool { return !d.forceLeaf }

// IncrementVersion bumps the DODAG version, triggering a global rejoin
// (§4.6 "Version increment ... for triggering rejoin").
func (d *DODAG) IncrementVersion() { d.Version++ }

// IncrementDTSN bumps the DAO Trigger Sequence Number, triggering a DAO
// refresh from descendants (§4.6).
func (d *DODAG) IncrementDTSN() { d.DTSN++ }

// Poison begins emitting 3 DIOs with infinite rank before becoming a leaf
// (§4.6 "Poison ... emit 3 DIOs with infinite rank then become leaf").
// NextPoisonDIORank reports rankInfinite until the budget is spent and
// forces leaf mode when the last poison DIO is taken.
func (d *DODAG) Poison() { d.poisoning = 3 }

// NextPoisonDIORank returns (rankInfinite, true) while a poison DIO is
// still owed, consuming one from the budget, and sets leaf mode when it
// hands out the last one; (0, false) once spent.
func (d *DODAG) NextPoisonDIORank() (rank uint16, poisoning bool) {
	if d.poisoning <= 0 {
		return 0, false
	}
	d.poisoning--
	if d.poisoning == 0 {
		d.forceLeaf = true
	}
	return rankInfinite, true
}
