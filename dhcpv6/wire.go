package dhcpv6

import (
	"net/netip"

	"github.com/soypat/wisun"
	"github.com/soypat/wisun/ipv6"
	"github.com/soypat/wisun/udp"
)

// Well-known DHCPv6 UDP ports (RFC 8415 §7.2).
const (
	ClientPort uint16 = 546
	ServerPort uint16 = 547
)

// EncodeDatagram wraps payload (a DHCPv6 message or relay envelope) in a
// UDP/IPv6 datagram addressed from src:srcPort to dst:dstPort, writing it
// into buf. The 6LoWPAN adaptation layer IPHC-compresses the IPv6 header
// on the way out and the mesh link recomputes the UDP checksum from the
// decompressed pseudo-header on the way in, so this is the one place the
// server/relay deals with the wire form directly.
func EncodeDatagram(buf []byte, src, dst netip.Addr, srcPort, dstPort uint16, payload []byte) (ipv6.Frame, error) {
	ifrm, err := ipv6.NewFrame(buf)
	if err != nil {
		return ifrm, err
	}
	ifrm.ClearHeader()
	ifrm.SetVersionTrafficAndFlow(6, 0, 0)
	ifrm.SetNextHeader(wisun.IPProtoUDP)
	ifrm.SetHopLimit(64)
	srcB, dstB := src.As16(), dst.As16()
	copy(ifrm.SourceAddr()[:], srcB[:])
	copy(ifrm.DestinationAddr()[:], dstB[:])
	ifrm.SetPayloadLength(uint16(udpHeaderLen + len(payload)))

	ufrm, err := udp.NewFrame(ifrm.Payload())
	if err != nil {
		return ifrm, err
	}
	ufrm.ClearHeader()
	ufrm.SetSourcePort(srcPort)
	ufrm.SetDestinationPort(dstPort)
	ufrm.SetLength(uint16(udpHeaderLen + len(payload)))
	copy(ufrm.Payload(), payload)
	ufrm.SetCRC(ufrm.CalculateIPv6Checksum(ifrm))
	return ifrm, nil
}

const udpHeaderLen = 8

// EncodeReply wraps a server REPLY (or ADVERTISE) payload addressed to a
// client's assigned address, from the server's prefix address, over UDP
// server->client port (§4.8 "reply with an ADVERTISE, then a REPLY").
func (s *Server) EncodeReply(buf []byte, client netip.Addr, payload []byte) (ipv6.Frame, error) {
	return EncodeDatagram(buf, s.Prefix.Addr(), client, ServerPort, ClientPort, payload)
}

// EncodeForward wraps a RELAY-FORW's inner client message for delivery to
// the configured upstream server (§4.8 "relay DHCPv6 traffic when
// configured").
func (r *Relay) EncodeForward(buf []byte, payload []byte) (ipv6.Frame, error) {
	return EncodeDatagram(buf, r.LinkAddr, r.Upstream, ServerPort, ServerPort, payload)
}
