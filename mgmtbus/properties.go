package mgmtbus

import "github.com/soypat/wisun"

// NodeInfo is one entry of the "Nodes" property (§6): every joined
// neighbor's identity, topology and link-quality snapshot.
type NodeInfo struct {
	EUI64       wisun.EUI64   `json:"eui64"`
	Role        wisun.NodeRole `json:"role"`
	ParentEUI64 wisun.EUI64   `json:"parent_eui64"`
	RSSI        int8          `json:"rssi"`
	RSL         uint8         `json:"rsl"`
	IPv6        []string      `json:"ipv6"`
}

// TimingParam is the structured result of GetTimingParam (§6), not a
// bare scalar, per the dbus.c precedent noted for this property.
type TimingParam struct {
	Imin       uint32 `json:"imin_ms"`
	Imax       uint32 `json:"imax_ms"`
	K          uint8  `json:"k"`
	PANTimeout uint32 `json:"pan_timeout_s"`
}

// FHSSChannelMask is the structured result of getFhssChannelMask (§6):
// four 32-bit words covering up to 128 channels, first/last variants
// matching setFhssChMaskF4b/L4b's wire shape.
type FHSSChannelMask struct {
	First4Bytes [4]uint32 `json:"first_4b"`
	Last4Bytes  [4]uint32 `json:"last_4b"`
}

// FHSSTimingConfig is the structured result of getFhssTimingConfigure
// (§6): the unicast dwell and broadcast interval/dwell currently in
// effect.
type FHSSTimingConfig struct {
	UnicastDwellMS    uint32 `json:"uc_dwell_ms"`
	BroadcastIntervalMS uint32 `json:"bc_interval_ms"`
	BroadcastDwellMS  uint32 `json:"bc_dwell_ms"`
}

// WisunCfgSettings is the structured result of getWisunCfgSettings (§6):
// the static network identity/profile settings.
type WisunCfgSettings struct {
	NetworkName string `json:"network_name"`
	Size        string `json:"size"`
	Domain      string `json:"domain"`
	Mode        uint32 `json:"mode"`
	Class       uint8  `json:"class"`
	PhyModeID   uint8  `json:"phy_mode_id"`
	ChanPlanID  uint8  `json:"chan_plan_id"`
}

// GAK computes the Group Authentication Key: SHA-256(network-name ||
// GTK), the derivation §6 names for the Gaks/Lgaks read-only properties.
func GAK(networkName string, gtk [16]byte) [32]byte {
	return gakHash(networkName, gtk)
}
