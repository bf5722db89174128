// Package udp provides a thin view over a UDP datagram header, used by the
// DHCPv6 server/relay (§4.8) which runs over UDP/IPv6 delivered through the
// 6LoWPAN adaptation layer.
package udp

import (
	"encoding/binary"
	"errors"

	"github.com/soypat/wisun"
	"github.com/soypat/wisun/ipv6"
)

const sizeHeader = 8

// NewFrame returns a new Frame with data set to buf.
// An error is returned if the buffer size is smaller than 8.
// Users should still call [Frame.ValidateSize] before working
// with payload/options of frames to avoid panics.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < sizeHeader {
		return Frame{buf: buf}, errors.New("UDP packet too short")
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw data of a UDP datagram
// and provides methods for manipulating, validating and
// retrieving fields and payload data. See [RFC768].
//
// [RFC768]: https://tools.ietf.org/html/rfc768
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice with which the frame was created.
func (ufrm Frame) RawData() []byte { return ufrm.buf }

// SourcePort identifies the sending port for the UDP packet. Must be non-zero.
func (ufrm Frame) SourcePort() uint16 {
	return binary.BigEndian.Uint16(ufrm.buf[0:2])
}

// SetSourcePort sets UDP source port. See [Frame.SourcePort]
func (ufrm Frame) SetSourcePort(src uint16) {
	binary.BigEndian.PutUint16(ufrm.buf[0:2], src)
}

// DestinationPort identifies the receiving port for the UDP packet. Must be non-zero.
func (ufrm Frame) DestinationPort() uint16 {
	return binary.BigEndian.Uint16(ufrm.buf[2:4])
}

// SetDestinationPort sets UDP destination port. See [Frame.DestinationPort]
func (ufrm Frame) SetDestinationPort(dst uint16) {
	binary.BigEndian.PutUint16(ufrm.buf[2:4], dst)
}

// Length specifies length in bytes of UDP header and UDP payload.
func (ufrm Frame) Length() uint16 {
	return binary.BigEndian.Uint16(ufrm.buf[4:6])
}

// SetLength sets the UDP header's length field. See [Frame.Length].
func (ufrm Frame) SetLength(length uint16) {
	binary.BigEndian.PutUint16(ufrm.buf[4:6], length)
}

// CRC returns the checksum field in the UDP header.
func (ufrm Frame) CRC() uint16 {
	return binary.BigEndian.Uint16(ufrm.buf[6:8])
}

// SetCRC sets the UDP header's CRC field. See [Frame.CRC].
func (ufrm Frame) SetCRC(checksum uint16) {
	binary.BigEndian.PutUint16(ufrm.buf[6:8], checksum)
}

// Payload returns the payload content section of the UDP packet.
// Be sure to call [Frame.ValidateSize] beforehand to avoid panic.
func (ufrm Frame) Payload() []byte {
	l := ufrm.Length()
	return ufrm.buf[sizeHeader:l]
}

// CalculateIPv6Checksum computes the UDP checksum over an IPv6 pseudo-header,
// used by the DHCPv6 server to fill in the checksum 6LoWPAN elided on the way
// in, or to stamp one before handing a reply down to the adaptation layer.
func (ufrm Frame) CalculateIPv6Checksum(ifrm ipv6.Frame) uint16 {
	var crc wisun.CRC791
	ifrm.CRCWritePseudo(&crc)
	crc.AddUint16(ufrm.SourcePort())
	crc.AddUint16(ufrm.DestinationPort())
	crc.AddUint16(ufrm.Length()) // Length double tap (pseudo-header + header).
	return wisun.NeverZeroChecksum(crc.PayloadSum16(ufrm.Payload()))
}

// ClearHeader zeros out the header contents.
func (frm Frame) ClearHeader() {
	for i := range frm.buf[:sizeHeader] {
		frm.buf[i] = 0
	}
}

var (
	errBadLen = errors.New("udp: bad UDP length")
	errShort  = errors.New("udp: short buffer")
)

// ValidateSize checks the frame's size fields and compares with the actual buffer
// the frame. On finding an inconsistency it adds an error to v.
func (ufrm Frame) ValidateSize(v *wisun.Validator) {
	ul := ufrm.Length()
	if ul < sizeHeader {
		v.AddError(errBadLen)
	}
	if int(ul) > len(ufrm.RawData()) {
		v.AddError(errShort)
	}
}
