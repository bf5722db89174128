package wsmgmt

import (
	"log/slog"
	"time"

	"github.com/soypat/wisun"
	"github.com/soypat/wisun/fhss"
	"github.com/soypat/wisun/internal"
	"github.com/soypat/wisun/mac"
	"github.com/soypat/wisun/rcp"
)

// Config holds the border router's advertised network identity and
// trickle parameters (§3 Wi-SUN management state, §4.4).
type Config struct {
	NetworkName string
	PANID       wisun.PANID
	PA          TrickleParams
	PC          TrickleParams
}

// PeerSchedule is the last-known schedule entry kept per neighbor (§3
// Neighbor-schedule entry), refreshed whenever a PA/PC frame updates it.
type PeerSchedule struct {
	Unicast   fhss.UnicastSchedule
	Broadcast fhss.BroadcastSchedule
	Observed  time.Time
}

// KeyRefreshSignal is invoked when a received PC's GTK/LGTK hash set
// disagrees with our own, per §4.4 "Hash mismatches ... trigger a key
// refresh needed signal to the authenticator".
type KeyRefreshSignal func()

// State is the border router's management-frame state machine: it owns
// the PA/PC trickle timers, tracks per-neighbor schedules learned from
// inbound frames, and emits the frames the trickle timers call for.
//
// Non-root (router/host) PAS/PCS transmission is out of scope (§4.4); this
// State only answers solicitations and advertises on its own trickles.
type State struct {
	cfg  Config
	pa   *Trickle
	pc   *Trickle
	now  func() time.Time

	panVersion uint16
	gtkHashes  [4][8]byte
	lgtkHashes [3][8]byte

	neighbors *mac.Table
	schedules map[wisun.EUI64]*PeerSchedule

	Unicast   fhss.UnicastSchedule
	Broadcast fhss.BroadcastSchedule

	// Send transmits an already-built management frame to dst (broadcast
	// short address for PA/PC), wired to the MAC helper's Enqueue.
	Send func(dst wisun.ShortAddr, kind FrameKind, payload []byte)
	// OnKeyRefreshNeeded fires when an inbound PC's hashes disagree with
	// ours; wired to the authenticator's rekey trigger.
	OnKeyRefreshNeeded KeyRefreshSignal

	log *slog.Logger
}

// NewState creates a management state machine bound to neighbors, with
// trickle timers driven by now (time.Now if nil).
func NewState(cfg Config, neighbors *mac.Table, now func() time.Time, log *slog.Logger) *State {
	if now == nil {
		now = time.Now
	}
	return &State{
		cfg:       cfg,
		pa:        NewTrickle(cfg.PA, now),
		pc:        NewTrickle(cfg.PC, now),
		now:       now,
		neighbors: neighbors,
		schedules: make(map[wisun.EUI64]*PeerSchedule),
		log:       log,
	}
}

// UnicastScheduleOf implements fhss.PeerSchedules, serving learned peer
// unicast schedules to the FHSS admission layer.
func (s *State) UnicastScheduleOf(eui wisun.EUI64) (*fhss.UnicastSchedule, bool) {
	p, ok := s.schedules[eui]
	if !ok {
		return nil, false
	}
	return &p.Unicast, true
}

// Poll checks both trickles for slot expiry and transmits PA/PC when due;
// cmd/wisun-br runs it from the event loop's ws-common-fast timer every
// 200ms (two Ticks).
func (s *State) Poll() {
	if s.pa.Due() {
		if s.pa.FireSlot() {
			s.transmitPA()
		}
	}
	if s.pc.Due() {
		if s.pc.FireSlot() {
			s.transmitPC()
		}
	}
}

func (s *State) transmitPA() {
	if s.Send == nil {
		return
	}
	var e rcp.Encoder
	BuildPA(&e, PAFrame{NetworkName: s.cfg.NetworkName, PANID: s.cfg.PANID, RoutingCost: 0, DeviceType: wisun.NodeRoleBorderRouter})
	s.Send(wisun.ShortAddrBroadcast, FramePA, e.Bytes())
}

func (s *State) transmitPC() {
	if s.Send == nil {
		return
	}
	var e rcp.Encoder
	BuildPC(&e, PCFrame{
		PANVersion: s.panVersion,
		GTKHashes:  s.gtkHashes,
		LGTKHashes: s.lgtkHashes,
		Unicast:    s.Unicast,
		Broadcast:  s.Broadcast,
	})
	s.Send(wisun.ShortAddrBroadcast, FramePC, e.Bytes())
}

// SetGTKHashes updates the hashes advertised in our own PC frames,
// incrementing the PAN version so neighbors notice the change.
func (s *State) SetGTKHashes(gtk [4][8]byte, lgtk [3][8]byte) {
	s.gtkHashes = gtk
	s.lgtkHashes = lgtk
	s.panVersion++
	s.pc.Reset()
}

// HandlePA processes an inbound PA (§4.4 inbound parsing): unknown
// sources allocate a neighbor entry, known sources refresh link lifetime.
func (s *State) HandlePA(src wisun.EUI64, srcShort wisun.ShortAddr, f PAFrame) {
	s.pa.Consistent()
	idx, ok := s.neighbors.Lookup(src)
	if !ok {
		idx, _ = s.neighbors.Insert(mac.Neighbor{EUI64: src, Short: srcShort, NodeRole: f.DeviceType, LinkLifetime: defaultLinkLifetime})
		internal.LogAttrs(s.log, slog.LevelInfo, "wsmgmt: new neighbor from PA", slog.String("eui", src.String()))
	} else {
		n := s.neighbors.Get(idx)
		n.LinkLifetime = defaultLinkLifetime
	}
}

// HandlePAS answers a PAN Advertisement Solicit, restarting our PA
// trickle at Imin so the reply is prompt (RFC 6206 does not mandate this
// but Wi-SUN PAS handling expects a near-immediate PA).
func (s *State) HandlePAS(PASFrame) {
	s.pa.Reset()
}

// HandlePC processes an inbound PC: refreshes the sender's schedule entry
// and signals the authenticator if GTK/LGTK hashes disagree with ours
// (§4.4).
func (s *State) HandlePC(src wisun.EUI64, srcShort wisun.ShortAddr, f PCFrame) {
	s.pc.Consistent()
	now := s.now()
	sched, ok := s.schedules[src]
	if !ok {
		sched = &PeerSchedule{}
		s.schedules[src] = sched
	}
	sched.Unicast = f.Unicast
	sched.Broadcast = f.Broadcast
	sched.Observed = now

	idx, ok2 := s.neighbors.Lookup(src)
	if !ok2 {
		idx, _ = s.neighbors.Insert(mac.Neighbor{EUI64: src, Short: srcShort, LinkLifetime: defaultLinkLifetime})
		_ = idx
	} else {
		n := s.neighbors.Get(idx)
		n.LinkLifetime = defaultLinkLifetime
	}

	if f.GTKHashes != s.gtkHashes || f.LGTKHashes != s.lgtkHashes {
		s.pc.Inconsistent()
		if s.OnKeyRefreshNeeded != nil {
			s.OnKeyRefreshNeeded()
		}
	}
}

// HandlePCS answers a PAN Configuration Solicit by restarting the PC
// trickle at Imin. f.DstEUI64 is not stored or echoed back, and no LFN
// (LPA/LPC) frame is scheduled in reply.
func (s *State) HandlePCS(f PCSFrame) {
	s.pc.Reset()
}

const defaultLinkLifetime = 1200 // seconds; refreshed on any PA/PC reception.
