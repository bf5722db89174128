package rcp

// Header is the single flags byte prefixing every HDLC payload: a
// transaction identifier used to match a command to its reply, and an
// interface identifier (always 0 in this spec's single-interface scope,
// carried anyway since the wire format reserves room for it).
type Header struct {
	TID uint8
	IID uint8
}

// EncodeHeader packs h into its wire byte: low 5 bits TID, high 3 bits IID.
func EncodeHeader(h Header) byte {
	return h.TID&0x1f | (h.IID&0x7)<<5
}

// DecodeHeader unpacks a wire header byte.
func DecodeHeader(b byte) Header {
	return Header{TID: b & 0x1f, IID: b >> 5}
}

// CommandID identifies a command the host issues to the RCP, or an event
// the RCP delivers to the host; both share one ID space distinguished by
// direction rather than value range, as on the wire.
type CommandID uint32

// Commands and events the core depends on (§4.1).
const (
	CmdReset             CommandID = 0
	CmdNoop              CommandID = 1
	CmdMCPSDataRequest   CommandID = 2
	CmdMLMESet           CommandID = 3
	CmdMLMEGet           CommandID = 4
	CmdBootloaderUpdate  CommandID = 5
	EventReset           CommandID = 0 // shares CmdReset's ID: RCP replies/announces on the same code.
	EventMCPSDataInd     CommandID = 6
	EventMCPSDataConfirm CommandID = 7
	EventMLMENotify      CommandID = 8
)

// PropertyID identifies an MLME-SET/MLME-GET target.
type PropertyID uint32

const (
	PropPANID             PropertyID = 0
	PropShortAddr         PropertyID = 1
	PropExtAddr           PropertyID = 2
	PropFHSSUnicast       PropertyID = 3
	PropFHSSBroadcast     PropertyID = 4
	PropTXPower           PropertyID = 5
	PropCCAThreshold      PropertyID = 6
	PropPromiscuous       PropertyID = 7
	PropFrameCounter      PropertyID = 8
	PropDeviceTable       PropertyID = 9
	PropKeyTable          PropertyID = 10
	PropModeSwitchPHYList PropertyID = 11
	PropCurrentChannel    PropertyID = 12
)

// MLMENotifyKind distinguishes the sub-events carried by EventMLMENotify.
type MLMENotifyKind uint8

const (
	NotifyEDFE     MLMENotifyKind = 0
	NotifyCRCError MLMENotifyKind = 1
	NotifyRxOn     MLMENotifyKind = 2
	NotifyRxOff    MLMENotifyKind = 3
)

// DataConfirmStatus is the per-packet outcome reported in an
// MCPS-DATA.confirm, used by the MAC helper to decide retry vs terminal
// failure (§4.2).
type DataConfirmStatus uint8

const (
	ConfirmSuccess         DataConfirmStatus = 0
	ConfirmCCAFail         DataConfirmStatus = 1
	ConfirmNoAck           DataConfirmStatus = 2
	ConfirmChannelAccess   DataConfirmStatus = 3
	ConfirmTransactionOver DataConfirmStatus = 4
)

// Message is a decoded frame: its header, command ID and remaining payload
// (property ID still encoded at the front for MLME-SET/GET messages).
type Message struct {
	Header  Header
	Command CommandID
	Payload []byte
}
