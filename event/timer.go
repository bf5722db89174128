package event

import "time"

// Tick is the canonical resolution every named timer advances by (§5).
const Tick = 100 * time.Millisecond

// Canonical timer names shared across the border router's subsystems. Each
// subsystem registers the timers it owns under these names so the
// management bus and logs can refer to a timer without reaching into the
// owning package.
const (
	TimerMonotonic          = "monotonic"
	TimerMPLSlow            = "mpl-slow"
	TimerRPLFast            = "rpl-fast"
	TimerRPLSlow            = "rpl-slow"
	TimerPAEFast            = "pae-fast"
	TimerPAESlow            = "pae-slow"
	TimerIPv6Destination    = "ipv6-destination"
	TimerIPv6Route          = "ipv6-route"
	TimerIPv6Frag           = "ipv6-frag"
	TimerICMPFast           = "icmp-fast"
	TimerLowpanMLDFast      = "lowpan-mld-fast"
	TimerLowpanMLDSlow      = "lowpan-mld-slow"
	TimerLowpanAddrFast     = "lowpan-addr-fast"
	TimerLowpanAddrSlow     = "lowpan-addr-slow"
	TimerLowpanND           = "lowpan-nd"
	TimerLowpanETX          = "lowpan-etx"
	TimerLowpanAdaptation   = "lowpan-adaptation"
	TimerLowpanNeighbor     = "lowpan-neighbor"
	TimerLowpanContext      = "lowpan-context"
	TimerLowpanBootstrap    = "lowpan-bootstrap"
	TimerLowpanReachableTme = "lowpan-reachable-time"
	TimerWSCommonFast       = "ws-common-fast"
	TimerWSCommonSlow       = "ws-common-slow"
	TimerDHCPv6Socket       = "dhcpv6-socket"
)

type timerEntry struct {
	name      string
	period    time.Duration
	remaining time.Duration
	oneShot   bool
	active    bool
	priority  Priority
	fn        Handler
}

type firedTimer struct {
	priority Priority
	fn       Handler
}

// Timers is the loop's named-timer registry. All timers advance together on
// the single 100ms tick; a timer with a longer period simply fires less
// often.
type Timers struct {
	ticker  *time.Ticker
	entries map[string]*timerEntry
	names   []string // insertion order, for deterministic iteration.
}

// NewTimers returns an empty Timers ticking at the canonical Tick
// resolution.
func NewTimers() *Timers {
	return &Timers{
		ticker:  time.NewTicker(Tick),
		entries: make(map[string]*timerEntry),
	}
}

func (t *Timers) tickChan() <-chan time.Time { return t.ticker.C }

// Stop releases the underlying ticker. Call once on process shutdown.
func (t *Timers) Stop() { t.ticker.Stop() }

// Register installs (or replaces) a named periodic timer. period is rounded
// up to a whole number of Tick intervals. If oneShot, the timer fires once
// and is then removed.
func (t *Timers) Register(name string, period time.Duration, priority Priority, oneShot bool, fn Handler) {
	if period < Tick {
		period = Tick
	}
	period = (period + Tick - 1) / Tick * Tick
	if _, exists := t.entries[name]; !exists {
		t.names = append(t.names, name)
	}
	t.entries[name] = &timerEntry{
		name:      name,
		period:    period,
		remaining: period,
		active:    true,
		oneShot:   oneShot,
		priority:  priority,
		fn:        fn,
	}
}

// Cancel deactivates a named timer; it stops firing but its name and last
// configuration are retained until Register overwrites it.
func (t *Timers) Cancel(name string) {
	if e, ok := t.entries[name]; ok {
		e.active = false
	}
}

// Reschedule resets a named timer's remaining countdown to its full period,
// used for e.g. RPL DTSN-increment-driven DAO refresh timers that restart
// on external events rather than on their own expiry.
func (t *Timers) Reschedule(name string) {
	if e, ok := t.entries[name]; ok {
		e.remaining = e.period
		e.active = true
	}
}

// advance steps every active timer by one Tick and returns the ones that
// fired this tick, in registration order.
func (t *Timers) advance(now time.Time) []firedTimer {
	var fired []firedTimer
	for _, name := range t.names {
		e := t.entries[name]
		if !e.active {
			continue
		}
		e.remaining -= Tick
		if e.remaining > 0 {
			continue
		}
		fired = append(fired, firedTimer{priority: e.priority, fn: e.fn})
		if e.oneShot {
			e.active = false
		} else {
			e.remaining += e.period
			if e.remaining <= 0 {
				e.remaining = e.period
			}
		}
	}
	return fired
}
