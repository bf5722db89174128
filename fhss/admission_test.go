package fhss

import (
	"testing"
	"time"

	"github.com/soypat/wisun"
	"github.com/soypat/wisun/mac"
)

type staticPeers struct {
	sched *UnicastSchedule
}

func (p staticPeers) UnicastScheduleOf(wisun.EUI64) (*UnicastSchedule, bool) {
	return p.sched, true
}

// TestUnicastAdmissionGatesOnChannelMatch walks through a two-channel hash
// schedule: transmission is refused while the radio sits on the wrong
// channel and admitted once Hop has caught the radio up (§8 scenario 3).
func TestUnicastAdmissionGatesOnChannelMatch(t *testing.T) {
	epoch := time.Unix(0, 0)
	peerSched := &UnicastSchedule{
		Function:    ChannelFunctionHash,
		Dwell:       100 * time.Millisecond,
		Seed:        0xabc,
		NumChannels: 2,
	}
	peerSched.SetEpoch(epoch)

	l := &Layer{
		Unicast: UnicastSchedule{
			Function:    ChannelFunctionHash,
			Dwell:       100 * time.Millisecond,
			Seed:        0xabc,
			NumChannels: 2,
		},
		Peers: staticPeers{sched: peerSched},
	}
	l.Unicast.SetEpoch(epoch)

	now := epoch
	l.Clock = func() time.Time { return now }

	req := &mac.TxRequest{Dst: wisun.EUI64{1}, Priority: wisun.PriorityNormal}

	wantChannel := peerSched.ChannelAt(now)
	if l.CurrentChannel() == wantChannel {
		l.currentChannel = wantChannel + 1 // force mismatch deterministically
	}
	if l.MayTransmit(req, false) {
		t.Fatal("expected refusal before radio is on the peer's channel")
	}

	var commanded uint16
	l.SetChannel = func(ch uint16) { commanded = ch }
	l.Hop()
	if commanded != wantChannel {
		t.Fatalf("Hop commanded channel %d, want %d", commanded, wantChannel)
	}
	if !l.MayTransmit(req, false) {
		t.Fatal("expected admission once radio matches peer channel")
	}

	immediate := &mac.TxRequest{Dst: wisun.EUI64{1}, Priority: wisun.PriorityImmediate}
	l.currentChannel = wantChannel + 1
	if !l.MayTransmit(immediate, false) {
		t.Fatal("Immediate priority must bypass channel-match admission")
	}
}

func TestBroadcastAdmissionGatesOnSlot(t *testing.T) {
	epoch := time.Unix(0, 0)
	l := &Layer{
		Broadcast: BroadcastSchedule{
			Interval:    time.Second,
			Dwell:       100 * time.Millisecond,
			NumChannels: 1,
		},
	}
	l.Broadcast.SetEpoch(epoch)

	now := epoch
	l.Clock = func() time.Time { return now }
	req := &mac.TxRequest{Priority: wisun.PriorityNormal}

	if !l.MayTransmit(req, true) {
		t.Fatal("expected broadcast admitted during active slot")
	}
	now = epoch.Add(500 * time.Millisecond)
	if l.MayTransmit(req, true) {
		t.Fatal("expected broadcast refused outside active slot")
	}
}
