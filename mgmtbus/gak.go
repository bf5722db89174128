package mgmtbus

import "crypto/sha256"

// gakHash implements GAK = SHA-256(network-name || GTK) (§6).
func gakHash(networkName string, gtk [16]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(networkName))
	h.Write(gtk[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
