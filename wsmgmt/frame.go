package wsmgmt

import (
	"fmt"
	"time"

	"github.com/soypat/wisun"
	"github.com/soypat/wisun/fhss"
	"github.com/soypat/wisun/rcp"
)

// FrameKind identifies the management frame carried in an MCPS-DATA
// payload once the 802.15.4 MAC header has been stripped (§4.4).
type FrameKind uint8

const (
	FramePA  FrameKind = iota // PAN Advertisement
	FramePAS                  // PAN Advertisement Solicit
	FramePC                   // PAN Configuration
	FramePCS                  // PAN Configuration Solicit
	FrameLPA                  // LFN PAN Advertisement
	FrameLPC                  // LFN PAN Configuration
)

// PAFrame is a PAN Advertisement: network identity plus routing cost, used
// by nodes to select a parent (§4.4 inbound PA/PAS/PC/PCS parsing).
type PAFrame struct {
	NetworkName  string
	PANID        wisun.PANID
	RoutingCost  uint16
	DeviceType   wisun.NodeRole
}

// PASFrame is a PAN Advertisement Solicit: a request for a PA, optionally
// naming the network the soliciting node wants to join.
type PASFrame struct {
	NetworkName string
}

// PCFrame is a PAN Configuration: carries the broadcast/unicast schedules
// and the GTK/LGTK hashes nodes use to detect they need a key refresh.
type PCFrame struct {
	PANVersion  uint16
	GTKHashes   [4][8]byte
	LGTKHashes  [3][8]byte
	Unicast     fhss.UnicastSchedule
	Broadcast   fhss.BroadcastSchedule
}

// PCSFrame is a PAN Configuration Solicit, optionally naming the
// destination EUI-64 for the LFN (LPC) variant (§4.4 LFN support).
type PCSFrame struct {
	DstEUI64 wisun.EUI64
}

func encodeString(e *rcp.Encoder, s string) { e.PutBlob([]byte(s)) }

func decodeString(d *rcp.Decoder) (string, error) {
	b, err := d.Blob()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// BuildPA encodes a PAN Advertisement payload.
func BuildPA(e *rcp.Encoder, f PAFrame) {
	encodeString(e, f.NetworkName)
	e.PutU16(uint16(f.PANID))
	e.PutU16(f.RoutingCost)
	e.PutU8(uint8(f.DeviceType))
}

// ParsePA decodes a PAN Advertisement payload.
func ParsePA(d *rcp.Decoder) (PAFrame, error) {
	var f PAFrame
	var err error
	if f.NetworkName, err = decodeString(d); err != nil {
		return f, err
	}
	panID, err := d.U16()
	if err != nil {
		return f, err
	}
	f.PANID = wisun.PANID(panID)
	if f.RoutingCost, err = d.U16(); err != nil {
		return f, err
	}
	role, err := d.U8()
	if err != nil {
		return f, err
	}
	f.DeviceType = wisun.NodeRole(role)
	return f, nil
}

// BuildPAS encodes a PAN Advertisement Solicit payload.
func BuildPAS(e *rcp.Encoder, f PASFrame) { encodeString(e, f.NetworkName) }

// ParsePAS decodes a PAN Advertisement Solicit payload.
func ParsePAS(d *rcp.Decoder) (PASFrame, error) {
	name, err := decodeString(d)
	return PASFrame{NetworkName: name}, err
}

// BuildPC encodes a PAN Configuration payload.
func BuildPC(e *rcp.Encoder, f PCFrame) {
	e.PutU16(f.PANVersion)
	for _, h := range f.GTKHashes {
		e.PutFixed(h[:])
	}
	for _, h := range f.LGTKHashes {
		e.PutFixed(h[:])
	}
	fhss.BuildUSIE(e, &f.Unicast)
	fhss.BuildBSIE(e, &f.Broadcast)
}

// ParsePC decodes a PAN Configuration payload, anchoring the embedded
// schedules' epoch at epoch (normally the time the frame was received).
func ParsePC(d *rcp.Decoder, epoch time.Time) (PCFrame, error) {
	var f PCFrame
	var err error
	if f.PANVersion, err = d.U16(); err != nil {
		return f, err
	}
	for i := range f.GTKHashes {
		h, err := d.Fixed(8)
		if err != nil {
			return f, err
		}
		copy(f.GTKHashes[i][:], h)
	}
	for i := range f.LGTKHashes {
		h, err := d.Fixed(8)
		if err != nil {
			return f, err
		}
		copy(f.LGTKHashes[i][:], h)
	}
	if f.Unicast, err = fhss.ParseUSIE(d, epoch); err != nil {
		return f, err
	}
	if f.Broadcast, err = fhss.ParseBSIE(d, epoch); err != nil {
		return f, err
	}
	return f, nil
}

// BuildPCS encodes a PAN Configuration Solicit payload.
func BuildPCS(e *rcp.Encoder, f PCSFrame) { e.PutFixed(f.DstEUI64[:]) }

// ParsePCS decodes a PAN Configuration Solicit payload.
func ParsePCS(d *rcp.Decoder) (PCSFrame, error) {
	b, err := d.Fixed(8)
	if err != nil {
		return PCSFrame{}, err
	}
	var f PCSFrame
	copy(f.DstEUI64[:], b)
	return f, nil
}

// maxFrameKind bounds the values IsManagementFrame recognizes as a
// leading dispatch byte, rather than an IPv6/6LoWPAN datagram.
const maxFrameKind = FrameLPC

// WrapFrame prepends kind as a one-byte dispatch prefix ahead of an
// already-built PA/PAS/PC/PCS payload. Every FrameKind value (0-5) sits
// well below the smallest legal 6LoWPAN dispatch byte (RFC 4944 reserves
// the high two bits, so uncompressed IPv6/IPHC/fragment headers are
// always >= 0x40), so a receiver can tell management traffic from mesh
// data apart by this leading byte alone without a separate MPX header.
func WrapFrame(kind FrameKind, payload []byte) []byte {
	return append([]byte{byte(kind)}, payload...)
}

// IsManagementFrame reports whether payload begins with a recognized
// FrameKind dispatch byte (see WrapFrame), returning the kind and the
// payload with that byte stripped.
func IsManagementFrame(payload []byte) (kind FrameKind, body []byte, ok bool) {
	if len(payload) == 0 || payload[0] > byte(maxFrameKind) {
		return 0, nil, false
	}
	return FrameKind(payload[0]), payload[1:], true
}

// Dispatch decodes body as the management frame named by kind and routes
// it to the matching HandleXXX method (§4.4 inbound PA/PAS/PC/PCS
// parsing). epoch anchors PC's embedded FHSS schedules.
func (s *State) Dispatch(src wisun.EUI64, srcShort wisun.ShortAddr, kind FrameKind, body []byte, epoch time.Time) error {
	d := rcp.NewDecoder(body)
	switch kind {
	case FramePA:
		f, err := ParsePA(d)
		if err != nil {
			return err
		}
		s.HandlePA(src, srcShort, f)
	case FramePAS:
		f, err := ParsePAS(d)
		if err != nil {
			return err
		}
		s.HandlePAS(f)
	case FramePC:
		f, err := ParsePC(d, epoch)
		if err != nil {
			return err
		}
		s.HandlePC(src, srcShort, f)
	case FramePCS:
		f, err := ParsePCS(d)
		if err != nil {
			return err
		}
		s.HandlePCS(f)
	default:
		return fmt.Errorf("wsmgmt: unsupported frame kind %d", kind)
	}
	return nil
}
