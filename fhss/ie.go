package fhss

import (
	"time"

	"github.com/soypat/wisun/rcp"
)

// BuildUSIE encodes this device's unicast schedule into a US-IE payload
// (§4.3): channel function, dwell interval (ms), and either the fixed
// channel or the hopping seed plus channel count, depending on function.
func BuildUSIE(e *rcp.Encoder, s *UnicastSchedule) {
	e.PutU8(uint8(s.Function))
	e.PutU16(uint16(s.Dwell / time.Millisecond))
	switch s.Function {
	case ChannelFunctionFixed:
		e.PutU16(s.FixedChannel)
	default:
		e.PutU32(s.Seed)
		e.PutU16(s.NumChannels)
	}
	e.PutBlob(s.ChannelMask)
}

// ParseUSIE decodes a peer's US-IE payload into a schedule anchored at
// epoch (the time the IE was received, per the FHSS "corrected on RCP
// timestamps" rule in §4.3).
func ParseUSIE(d *rcp.Decoder, epoch time.Time) (UnicastSchedule, error) {
	var s UnicastSchedule
	fn, err := d.U8()
	if err != nil {
		return s, err
	}
	s.Function = ChannelFunction(fn)
	dwellMS, err := d.U16()
	if err != nil {
		return s, err
	}
	s.Dwell = time.Duration(dwellMS) * time.Millisecond
	switch s.Function {
	case ChannelFunctionFixed:
		s.FixedChannel, err = d.U16()
		if err != nil {
			return s, err
		}
	default:
		s.Seed, err = d.U32()
		if err != nil {
			return s, err
		}
		s.NumChannels, err = d.U16()
		if err != nil {
			return s, err
		}
	}
	mask, err := d.Blob()
	if err != nil {
		return s, err
	}
	s.ChannelMask = append([]byte(nil), mask...)
	s.SetEpoch(epoch)
	return s, nil
}

// BuildBSIE encodes the broadcast schedule advertised to neighbors (§4.3):
// imin, interval, dwell (all ms), current slot number, and channel mask.
func BuildBSIE(e *rcp.Encoder, s *BroadcastSchedule) {
	e.PutU32(uint32(s.Imin / time.Millisecond))
	e.PutU32(uint32(s.Interval / time.Millisecond))
	e.PutU16(uint16(s.Dwell / time.Millisecond))
	e.PutU8(s.SlotNumber)
	e.PutU16(s.NumChannels)
	e.PutBlob(s.ChannelMask)
}

// ParseBSIE decodes a peer's BS-IE payload, the last-known broadcast
// schedule kept in the per-neighbor schedule entry (§3 Neighbor-schedule
// entry).
func ParseBSIE(d *rcp.Decoder, epoch time.Time) (BroadcastSchedule, error) {
	var s BroadcastSchedule
	iminMS, err := d.U32()
	if err != nil {
		return s, err
	}
	s.Imin = time.Duration(iminMS) * time.Millisecond
	intervalMS, err := d.U32()
	if err != nil {
		return s, err
	}
	s.Interval = time.Duration(intervalMS) * time.Millisecond
	dwellMS, err := d.U16()
	if err != nil {
		return s, err
	}
	s.Dwell = time.Duration(dwellMS) * time.Millisecond
	s.SlotNumber, err = d.U8()
	if err != nil {
		return s, err
	}
	s.NumChannels, err = d.U16()
	if err != nil {
		return s, err
	}
	mask, err := d.Blob()
	if err != nil {
		return s, err
	}
	s.ChannelMask = append([]byte(nil), mask...)
	s.SetEpoch(epoch)
	return s, nil
}
