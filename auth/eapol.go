package auth

// EAPOLKind identifies the EAPOL-carried message multiplexed onto an
// MCPS-DATA payload (§4.5), using the same leading dispatch-byte
// convention wsmgmt uses for PA/PC: these values start immediately past
// wsmgmt's FrameKind range so the two namespaces never collide on the
// wire, and both stay well under the smallest legal 6LoWPAN dispatch byte.
type EAPOLKind uint8

const (
	EAPOLStart EAPOLKind = iota + 6
	EAPOLTLSData
	EAPOLMessage1
	EAPOLMessage2
	EAPOLMessage3
	EAPOLMessage4
	EAPOLGroupKey
	EAPOLGroupKeyAck
)

const (
	minEAPOLKind = EAPOLStart
	maxEAPOLKind = EAPOLGroupKeyAck
)

// WrapEAPOL prepends kind as a one-byte dispatch prefix ahead of an
// already-built EAPOL message payload.
func WrapEAPOL(kind EAPOLKind, payload []byte) []byte {
	return append([]byte{byte(kind)}, payload...)
}

// IsEAPOLFrame reports whether payload begins with a recognized EAPOLKind
// dispatch byte, returning the kind and the payload with that byte
// stripped. Disjoint from wsmgmt.IsManagementFrame's range, so a caller
// should try that first.
func IsEAPOLFrame(payload []byte) (kind EAPOLKind, body []byte, ok bool) {
	if len(payload) == 0 || payload[0] < byte(minEAPOLKind) || payload[0] > byte(maxEAPOLKind) {
		return 0, nil, false
	}
	return EAPOLKind(payload[0]), payload[1:], true
}
