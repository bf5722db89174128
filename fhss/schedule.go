// Package fhss decides, at TX time, which channel a frame goes out on and
// whether the transmission is admissible right now, and codes the Wi-SUN
// information elements (US-IE, BS-IE) that advertise and learn unicast and
// broadcast hopping schedules (§4.3).
package fhss

import (
	"time"

	"github.com/soypat/wisun/internal"
)

// ChannelFunction selects how a schedule's channel sequence is derived.
type ChannelFunction uint8

const (
	ChannelFunctionFixed ChannelFunction = iota
	ChannelFunctionHash
	ChannelFunctionDH1CF
)

// UnicastSchedule is a device's own or a learned peer's unicast hopping
// parameters (§4.3).
type UnicastSchedule struct {
	Function    ChannelFunction
	Dwell       time.Duration
	FixedChannel uint16
	Seed        uint32 // derived from the owning device's EUI-64, used by ChannelFunctionHash/DH1CF.
	NumChannels uint16
	ChannelMask []byte // bitmap over the domain's channel plan.

	epoch time.Time // reference instant dwell slots are computed from.
}

// BroadcastSchedule is the shared broadcast hopping parameters advertised
// by the border router (§4.3).
type BroadcastSchedule struct {
	Imin        time.Duration
	Interval    time.Duration
	Dwell       time.Duration
	SlotNumber  uint8
	NumChannels uint16
	ChannelMask []byte

	epoch time.Time
}

// SetEpoch anchors a schedule's dwell computation to a reference instant,
// typically the RCP's PHY clock translated to host monotonic time.
func (s *UnicastSchedule) SetEpoch(t time.Time) { s.epoch = t }

// SetEpoch anchors the broadcast schedule's dwell computation.
func (s *BroadcastSchedule) SetEpoch(t time.Time) { s.epoch = t }

// ChannelAt returns the channel a unicast schedule is dwelling on at now.
func (s *UnicastSchedule) ChannelAt(now time.Time) uint16 {
	if s.Function == ChannelFunctionFixed || s.NumChannels == 0 {
		return s.FixedChannel
	}
	slot := dwellSlot(s.epoch, now, s.Dwell)
	return hopChannel(s.Seed, slot, s.NumChannels)
}

// ChannelAt returns the channel the broadcast schedule is dwelling on at
// now, and whether our own broadcast slot is currently active.
func (s *BroadcastSchedule) ChannelAt(now time.Time) (channel uint16, slotActive bool) {
	if s.NumChannels == 0 {
		return 0, false
	}
	elapsed := now.Sub(s.epoch)
	if s.Interval <= 0 {
		return 0, false
	}
	slotInInterval := (elapsed % s.Interval)
	slotActive = slotInInterval < s.Dwell
	slot := uint32(elapsed / s.Interval)
	channel = hopChannel(uint32(s.SlotNumber), slot, s.NumChannels)
	return channel, slotActive
}

func dwellSlot(epoch, now time.Time, dwell time.Duration) uint32 {
	if dwell <= 0 {
		return 0
	}
	elapsed := now.Sub(epoch)
	if elapsed < 0 {
		elapsed = 0
	}
	return uint32(elapsed / dwell)
}

// hopChannel derives a pseudo-random channel index from a seed and slot
// number using the same xorshift PRNG used elsewhere in this module for
// jitter, deterministic given (seed, slot) so both ends compute the same
// channel independently.
func hopChannel(seed uint32, slot uint32, numChannels uint16) uint16 {
	x := internal.Prand32(seed ^ slot)
	return uint16(x % uint32(numChannels))
}
