package dhcpv6

import (
	"errors"
	"net/netip"
)

// RelayMessageType distinguishes the two DHCPv6 relay message types this
// relay wraps client traffic in (RFC 8415 §7.3, supplemented feature
// grounded on the legacy relay agent's "rel-fwd"/"rel-rply" framing).
type RelayMessageType uint8

const (
	RelayForward RelayMessageType = 12
	RelayReply   RelayMessageType = 13
)

var ErrRelayHopLimitExceeded = errors.New("dhcpv6: relay hop count limit exceeded")

const maxRelayHops = 8

// RelayMessage is a decoded relay-forward/relay-reply envelope: hop
// count, the link address (used to pick the server's reply prefix) and
// peer address (the client or downstream relay), wrapping an inner
// client message or another relay message.
type RelayMessage struct {
	Type       RelayMessageType
	HopCount   uint8
	LinkAddr   netip.Addr
	PeerAddr   netip.Addr
	Inner      []byte
}

// Relay forwards client DHCPv6 traffic arriving over the mesh to a
// configured upstream server address, when the border router is
// configured to delegate address assignment rather than serve it
// directly (§4.8 "relay DHCPv6 traffic when configured").
type Relay struct {
	LinkAddr netip.Addr
	Upstream netip.Addr
}

// NewRelay creates a relay agent stamping linkAddr into forwarded
// messages and forwarding to upstream.
func NewRelay(linkAddr, upstream netip.Addr) *Relay {
	return &Relay{LinkAddr: linkAddr, Upstream: upstream}
}

// WrapForward builds a RELAY-FORW envelope around a client message
// received from peer, incrementing hop count from any existing envelope
// (relay chaining).
func (r *Relay) WrapForward(peer netip.Addr, clientMsg []byte, existingHops uint8) (RelayMessage, error) {
	if existingHops >= maxRelayHops {
		return RelayMessage{}, ErrRelayHopLimitExceeded
	}
	return RelayMessage{
		Type:     RelayForward,
		HopCount: existingHops + 1,
		LinkAddr: r.LinkAddr,
		PeerAddr: peer,
		Inner:    clientMsg,
	}, nil
}

// Unwrap strips one relay envelope layer off a RELAY-REPLY, returning the
// inner message (either the client's reply or another relay envelope for
// chained relays) and the peer address to deliver it toward.
func (r *Relay) Unwrap(msg RelayMessage) (inner []byte, peer netip.Addr, err error) {
	if msg.Type != RelayReply {
		return nil, netip.Addr{}, errors.New("dhcpv6: expected RELAY-REPLY")
	}
	return msg.Inner, msg.PeerAddr, nil
}
