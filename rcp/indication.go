package rcp

import "github.com/soypat/wisun"

// DataIndication is a decoded MCPS-DATA.indication (§4.1 "bytes received +
// LQI, RSSI, timestamp, ack-requested/framepending flags"): the security
// parameters the MAC helper needs to authenticate/decrypt the frame, plus
// the radio-quality metadata upper layers (FHSS, neighbor RSSI tracking)
// consume.
type DataIndication struct {
	Src       wisun.EUI64
	KeyIndex  uint16
	SecLevel  uint8
	Counter   uint32
	HeaderIEs []byte
	Payload   []byte
	RSSI      int8
	LQI       uint8
}

// EncodeDataIndication serializes ind the way the RCP firmware would, for
// tests and for any loopback/simulation harness standing in for real
// hardware.
func EncodeDataIndication(ind DataIndication) []byte {
	var enc Encoder
	enc.PutFixed(ind.Src[:])
	enc.PutU16(ind.KeyIndex)
	enc.PutU8(ind.SecLevel)
	enc.PutU32(ind.Counter)
	enc.PutBlob(ind.HeaderIEs)
	enc.PutBlob(ind.Payload)
	enc.PutI8(ind.RSSI)
	enc.PutU8(ind.LQI)
	return enc.Bytes()
}

// DecodeDataIndication parses an EventMCPSDataInd payload.
func DecodeDataIndication(payload []byte) (DataIndication, error) {
	var ind DataIndication
	d := NewDecoder(payload)
	src, err := d.Fixed(8)
	if err != nil {
		return ind, err
	}
	copy(ind.Src[:], src)
	if ind.KeyIndex, err = d.U16(); err != nil {
		return ind, err
	}
	if ind.SecLevel, err = d.U8(); err != nil {
		return ind, err
	}
	if ind.Counter, err = d.U32(); err != nil {
		return ind, err
	}
	if ind.HeaderIEs, err = d.Blob(); err != nil {
		return ind, err
	}
	if ind.Payload, err = d.Blob(); err != nil {
		return ind, err
	}
	if ind.RSSI, err = d.I8(); err != nil {
		return ind, err
	}
	if ind.LQI, err = d.U8(); err != nil {
		return ind, err
	}
	return ind, nil
}
