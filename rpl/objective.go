package rpl

import "github.com/soypat/wisun"

// minHopRankIncrease is RFC 6551's default MinHopRankIncrease, the rank
// units one hop contributes at ETX == 1.0.
const minHopRankIncrease = 256

// RankIncrement computes the MRHOF (RFC 6719) style per-hop rank
// contribution from a neighbor's ETX accumulator: a perfect link (ETX 1.0)
// costs exactly minHopRankIncrease, a lossy link costs proportionally more.
// This is the routing-parent selection input named in §4.4/§4.6.
func RankIncrement(etx *wisun.ETXAccumulator) uint16 {
	if etx == nil {
		return minHopRankIncrease
	}
	increment := uint32(etx.Value()) * minHopRankIncrease >> etxFractionBits
	if increment > rankInfinite {
		return rankInfinite
	}
	if increment == 0 {
		return minHopRankIncrease
	}
	return uint16(increment)
}

const etxFractionBits = 12
