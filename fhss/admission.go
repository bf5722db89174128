package fhss

import (
	"time"

	"github.com/soypat/wisun"
	"github.com/soypat/wisun/mac"
)

// PeerSchedules resolves a neighbor's learned unicast schedule, as parsed
// from their US-IE (§4.3).
type PeerSchedules interface {
	UnicastScheduleOf(eui wisun.EUI64) (*UnicastSchedule, bool)
}

// Layer is the FHSS sub-layer: it owns this device's own schedules, tracks
// the radio's current channel, and answers the MAC helper's admission
// question at dequeue time. It implements mac.Admission.
type Layer struct {
	Unicast   UnicastSchedule
	Broadcast BroadcastSchedule
	Peers     PeerSchedules

	currentChannel uint16
	// SetChannel is invoked when the layer decides to hop, typically wired
	// to an MLME-SET(set-channel) RCP command.
	SetChannel func(ch uint16)
	// Clock returns the host's monotonic time, corrected against RCP PHY
	// timestamps by the caller; defaults to time.Now if nil.
	Clock func() time.Time
}

func (l *Layer) now() time.Time {
	if l.Clock != nil {
		return l.Clock()
	}
	return time.Now()
}

// MayTransmit implements mac.Admission (§4.3 Admission contract): FHSS
// refuses a unicast TX when the neighbor's current channel differs from
// the radio's current channel and priority is below Immediate; broadcast
// is gated on the local broadcast slot being active.
func (l *Layer) MayTransmit(req *mac.TxRequest, broadcast bool) bool {
	if broadcast {
		_, slotActive := l.Broadcast.ChannelAt(l.now())
		return slotActive
	}
	if req.Priority == wisun.PriorityImmediate {
		return true
	}
	if l.Peers == nil {
		return true
	}
	sched, found := l.Peers.UnicastScheduleOf(req.Dst)
	if !found {
		return true // Unknown schedule: nothing to gate on, let the MAC/RCP attempt it.
	}
	return sched.ChannelAt(l.now()) == l.currentChannel
}

// CurrentChannel reports the radio's last commanded channel.
func (l *Layer) CurrentChannel() uint16 { return l.currentChannel }

// Hop advances the radio to the channel the unicast schedule computes for
// now, if different from the current channel, invoking SetChannel (§4.3
// Channel hop).
func (l *Layer) Hop() {
	ch := l.Unicast.ChannelAt(l.now())
	if ch != l.currentChannel {
		l.currentChannel = ch
		if l.SetChannel != nil {
			l.SetChannel(ch)
		}
	}
}

// RebindEpoch resets both schedules' epoch to now, invalidating any
// in-flight admission decisions computed against the old epoch: the
// caller must requeue affected frames with RETURN_TO_QUEUE semantics
// (§4.3 Cancellation) — mac.Queue.Requeue already preserves priority
// order for this.
func (l *Layer) RebindEpoch() {
	now := l.now()
	l.Unicast.SetEpoch(now)
	l.Broadcast.SetEpoch(now)
}
