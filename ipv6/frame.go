// Package ipv6 provides a thin, allocation-free view over an IPv6 header,
// used wherever this module needs a real (decompressed) IPv6 header: the
// TUN bridge handing packets to/from the kernel, the RPL root's DODAG-ID and
// source-route header construction, and the 6LoWPAN adaptation layer after
// IPHC decompression.
package ipv6

import (
	"encoding/binary"
	"errors"

	"github.com/soypat/wisun"
)

const sizeHeader = 40

// NewFrame returns a new Frame with data set to buf.
// An error is returned if the buffer size is smaller than 40.
// Users should still call [Frame.ValidateSize] before working
// with payload/options of frames to avoid panics.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < sizeHeader {
		return Frame{buf: nil}, errShortBuf
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw data of an IPv6 packet
// and provides methods for manipulating, validating and
// retrieving fields and payload data. See [RFC8200].
//
// [RFC8200]: https://tools.ietf.org/html/rfc8200
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice with which the frame was created.
func (f Frame) RawData() []byte { return f.buf }

// Payload returns the contents of the IPv6 packet, which may be zero sized.
// Be sure to call [Frame.ValidateSize] beforehand to avoid panic.
func (f Frame) Payload() []byte {
	pl := f.PayloadLength()
	return f.buf[sizeHeader : sizeHeader+pl]
}

// VersionTrafficAndFlow returns the version, Traffic and Flow label fields of the IPv6 header.
// Version should be 6 for IPv6.
func (f Frame) VersionTrafficAndFlow() (version uint8, tos uint8, flow uint32) {
	v := binary.BigEndian.Uint32(f.buf[0:4])
	version = uint8(v >> (32 - 4))
	tos = uint8(v >> (32 - 12))
	flow = v & 0x000f_ffff
	return version, tos, flow
}

// SetVersionTrafficAndFlow sets the version, ToS and Flow label in the IPv6 header. Version must be equal to 6.
func (f Frame) SetVersionTrafficAndFlow(version, tos uint8, flow uint32) {
	v := flow | uint32(tos)<<(32-12) | uint32(version)<<(32-4)
	binary.BigEndian.PutUint32(f.buf[0:4], v)
}

// PayloadLength returns the size of payload in octets(bytes) including any extension headers.
func (f Frame) PayloadLength() uint16 {
	return binary.BigEndian.Uint16(f.buf[4:6])
}

// SetPayloadLength sets the payload length field of the IPv6 header. See [Frame.PayloadLength].
func (f Frame) SetPayloadLength(pl uint16) {
	binary.BigEndian.PutUint16(f.buf[4:6], pl)
}

// NextHeader returns the Next Header field of the IPv6 header, usually the
// transport protocol used by the packet's payload (UDP for DHCPv6, ICMPv6
// for RPL control messages).
func (f Frame) NextHeader() wisun.IPProto {
	return wisun.IPProto(f.buf[6])
}

// SetNextHeader sets the Next Header (protocol) field of the IPv6 header. See [Frame.NextHeader].
func (f Frame) SetNextHeader(proto wisun.IPProto) {
	f.buf[6] = uint8(proto)
}

// HopLimit returns the Hop Limit of the IPv6 header.
func (f Frame) HopLimit() uint8 {
	return f.buf[7]
}

// SetHopLimit sets the Hop Limit field of the IPv6 header. See [Frame.HopLimit].
func (f Frame) SetHopLimit(hop uint8) {
	f.buf[7] = hop
}

// SourceAddr returns pointer to the sending node unicast IPv6 address in the IP header.
func (f Frame) SourceAddr() *[16]byte {
	return (*[16]byte)(f.buf[8:24])
}

// DestinationAddr returns pointer to the destination node unicast or multicast IPv6 address in the IP header.
func (f Frame) DestinationAddr() *[16]byte {
	return (*[16]byte)(f.buf[24:40])
}

// CRCWritePseudo feeds the IPv6 pseudo-header (RFC 8200 §8.1) into crc, for
// UDP/ICMPv6 checksum recomputation after 6LoWPAN decompression elides it.
func (f Frame) CRCWritePseudo(crc *wisun.CRC791) {
	crc.WriteEven(f.SourceAddr()[:])
	crc.WriteEven(f.DestinationAddr()[:])
	crc.AddUint32(uint32(f.PayloadLength()))
	crc.AddUint32(uint32(f.NextHeader()))
}

// ClearHeader zeros out the header contents.
func (f Frame) ClearHeader() {
	for i := range f.buf[:sizeHeader] {
		f.buf[i] = 0
	}
}

var (
	errShortFrame = errors.New("ipv6: short frame")
	errShortBuf   = errors.New("ipv6: short buffer for frame")
)

// ValidateSize checks the frame's size fields and compares with the actual buffer
// the frame. On finding an inconsistency it adds an error to v.
func (f Frame) ValidateSize(v *wisun.Validator) {
	tl := f.PayloadLength()
	if int(tl)+sizeHeader > len(f.RawData()) {
		v.AddError(errShortFrame)
	}
}
