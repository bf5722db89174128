package internal

import (
	"log/slog"
)

// SlogEUI64 returns a slog.Attr for an EUI-64 device identifier, formatted
// as a colon-separated hex string, for use in neighbor/supplicant log lines.
func SlogEUI64(key string, addr [8]byte) slog.Attr {
	return slog.String(key, eui64String(addr))
}

func eui64String(e [8]byte) string {
	const hex = "0123456789abcdef"
	buf := make([]byte, 0, 23)
	for i, b := range e {
		if i > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, hex[b>>4], hex[b&0xf])
	}
	return string(buf)
}

// SlogShortAddr returns a slog.Attr for a 16 bit MAC short address.
func SlogShortAddr(key string, addr uint16) slog.Attr {
	return slog.Uint64(key, uint64(addr))
}
