package wisun

import "fmt"

// EUI64 is an IEEE-assigned 64 bit device identifier, used throughout the
// 802.15.4 MAC and Wi-SUN management layers to name devices independently of
// their (reassignable) short address.
type EUI64 [8]byte

// IsZero reports whether e is the all-zero EUI-64, used as "no address".
func (e EUI64) IsZero() bool { return e == EUI64{} }

func (e EUI64) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x:%02x:%02x",
		e[0], e[1], e[2], e[3], e[4], e[5], e[6], e[7])
}

// ShortAddr is a 16 bit MAC short address. 0xfffe means "no short address
// assigned", 0xffff is the broadcast address.
type ShortAddr uint16

const (
	ShortAddrUnassigned ShortAddr = 0xfffe
	ShortAddrBroadcast  ShortAddr = 0xffff
)

// PANID identifies the PAN a device or frame belongs to.
type PANID uint16

const PANIDBroadcast PANID = 0xffff

// Priority orders outbound MCPS-DATA requests inside the MAC helper's
// per-interface queue; higher values drain first within the FHSS admission
// rules of §4.3.
type Priority uint8

const (
	PriorityNormal Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityExpedited
	PriorityImmediate
)

func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "normal"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityExpedited:
		return "expedited"
	case PriorityImmediate:
		return "immediate"
	default:
		return "priority(?)"
	}
}

// LinkRole classifies a neighbor's role in the routing topology, as tracked
// by the MAC neighbor table (§3 Neighbor).
type LinkRole uint8

const (
	LinkRoleNormal LinkRole = iota
	LinkRolePrimaryParent
	LinkRoleSecondaryParent
	LinkRoleChild
)

// NodeRole is the Wi-SUN FAN role of a neighbor.
type NodeRole uint8

const (
	NodeRoleRouter NodeRole = iota
	NodeRoleBorderRouter
	NodeRoleLFN
)

// EventPriority is the three-band priority used by the process-wide event
// loop (§5 Scheduling model). Same-priority events are FIFO.
type EventPriority uint8

const (
	EventPriorityLow EventPriority = iota
	EventPriorityMedium
	EventPriorityHigh
)

// IPProto is an IPv6 Next Header / IP protocol number, used by the 6LoWPAN
// adaptation layer (compressed Next Header field) and by the RPL/DHCPv6
// layers when building IPv6 headers for the TUN backbone path.
type IPProto uint8

// IP protocol numbers actually exercised by this module; the list is kept
// short (unlike a general-purpose stack) since Wi-SUN traffic is overwhelmingly
// UDP/ICMPv6 with RPL option headers.
const (
	IPProtoHopByHop  IPProto = 0  // IPv6 Hop-by-Hop Option [RFC8200]
	IPProtoTCP       IPProto = 6  // Transmission Control [RFC793]
	IPProtoUDP       IPProto = 17 // User Datagram [RFC768]
	IPProtoIPv6Route IPProto = 43 // Routing Header for IPv6 [RFC8200] (RPL SRH)
	IPProtoIPv6Frag  IPProto = 44 // Fragment Header for IPv6 [RFC8200]
	IPProtoIPv6ICMP  IPProto = 58 // ICMP for IPv6 [RFC8200]
	IPProtoIPv6NoNxt IPProto = 59 // No Next Header for IPv6 [RFC8200]
	IPProtoIPv6Opts  IPProto = 60 // Destination Options for IPv6 [RFC8200]
)

const (
	sizeHeaderIPv6 = 40
	sizeHeaderUDP  = 8
)
