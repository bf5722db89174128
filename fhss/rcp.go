package fhss

import (
	"log/slog"

	"github.com/soypat/wisun/internal"
	"github.com/soypat/wisun/rcp"
)

// RCPChannelSetter returns a Layer.SetChannel implementation that issues
// an MLME-SET(current-channel) command to the RCP (§4.3 "FHSS emits
// set-channel(ch) through the RCP between dwells").
func RCPChannelSetter(tr *rcp.Transport, log *slog.Logger) func(ch uint16) {
	return func(ch uint16) {
		var enc rcp.Encoder
		enc.PutVaruint(uint32(rcp.PropCurrentChannel))
		enc.PutU16(ch)
		err := tr.SendCommand(rcp.CmdMLMESet, enc.Bytes(), func(_ rcp.Message, err error) {
			if err != nil {
				internal.LogAttrs(log, slog.LevelWarn, "fhss: set-channel failed", slog.Uint64("channel", uint64(ch)), slog.String("err", err.Error()))
			}
		})
		if err != nil {
			internal.LogAttrs(log, slog.LevelWarn, "fhss: set-channel send failed", slog.Uint64("channel", uint64(ch)), slog.String("err", err.Error()))
		}
	}
}
