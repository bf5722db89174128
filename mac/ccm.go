package mac

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"github.com/pion/dtls/v2/pkg/crypto/ccm"

	"github.com/soypat/wisun"
)

// SecLevel is the 802.15.4 frame security level, selecting the CCM* MIC
// length (and whether confidentiality is applied at all).
type SecLevel uint8

const (
	SecLevelNone      SecLevel = 0
	SecLevelMIC32     SecLevel = 1
	SecLevelMIC64     SecLevel = 2
	SecLevelMIC128    SecLevel = 3
	SecLevelEncMIC32  SecLevel = 5
	SecLevelEncMIC64  SecLevel = 6
	SecLevelEncMIC128 SecLevel = 7
)

// micLen returns the authentication tag length in bytes for a security
// level, or 0 for SecLevelNone (no security applied).
func (s SecLevel) micLen() int {
	switch s {
	case SecLevelMIC32, SecLevelEncMIC32:
		return 4
	case SecLevelMIC64, SecLevelEncMIC64:
		return 8
	case SecLevelMIC128, SecLevelEncMIC128:
		return 16
	default:
		return 0
	}
}

func (s SecLevel) encrypts() bool {
	return s >= SecLevelEncMIC32
}

// nonce builds the 13-byte CCM* nonce used throughout this spec:
// EUI-64 (8B) || frame counter (4B, BE) || security level (1B) (§9 Design
// Notes).
func nonce(src wisun.EUI64, counter uint32, level SecLevel) [13]byte {
	var n [13]byte
	copy(n[0:8], src[:])
	binary.BigEndian.PutUint32(n[8:12], counter)
	n[12] = byte(level)
	return n
}

// AEAD wraps an AES-128 CCM* instance for one key, sized for the MIC length
// a given security level demands. Distinct SecLevel values with different
// MIC lengths need distinct AEAD instances, so the MAC helper keeps one per
// (key, MIC length) it has actually used.
type AEAD struct {
	aead   cipher.AEAD
	micLen int
}

// NewAEAD constructs an AES-128 CCM* AEAD over key, with tag size micLen
// bytes (4, 8 or 16).
func NewAEAD(key [16]byte, micLen int) (*AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	a, err := ccm.NewCCM(block, micLen, 13)
	if err != nil {
		return nil, fmt.Errorf("mac: ccm init: %w", err)
	}
	return &AEAD{aead: a, micLen: micLen}, nil
}

// Seal encrypts (if level encrypts) and authenticates frame, appending the
// MIC, using header as the additional authenticated data (the unencrypted
// MAC header per 802.15.4 auxiliary security header rules).
func (a *AEAD) Seal(dst []byte, src wisun.EUI64, counter uint32, level SecLevel, header, plaintext []byte) []byte {
	n := nonce(src, counter, level)
	if !level.encrypts() {
		// MIC-only: authenticate header+payload, transmit payload in clear,
		// append the MIC computed over both.
		sealed := a.aead.Seal(nil, n[:], plaintext, header)
		tag := sealed[len(sealed)-a.micLen:]
		dst = append(dst, plaintext...)
		dst = append(dst, tag...)
		return dst
	}
	return a.aead.Seal(dst, n[:], plaintext, header)
}

// Open authenticates and, if level encrypts, decrypts ciphertext, verifying
// the trailing MIC. Security failures are terminal for the frame (§4.2).
func (a *AEAD) Open(dst []byte, src wisun.EUI64, counter uint32, level SecLevel, header, ciphertext []byte) ([]byte, error) {
	n := nonce(src, counter, level)
	if !level.encrypts() {
		if len(ciphertext) < a.micLen {
			return nil, wisun.ErrSecurityFail
		}
		plain := ciphertext[:len(ciphertext)-a.micLen]
		tag := ciphertext[len(ciphertext)-a.micLen:]
		reseal := a.aead.Seal(nil, n[:], plain, header)
		wantTag := reseal[len(reseal)-a.micLen:]
		if !constantTimeEqual(tag, wantTag) {
			return nil, wisun.ErrSecurityFail
		}
		return append(dst, plain...), nil
	}
	out, err := a.aead.Open(dst, n[:], ciphertext, header)
	if err != nil {
		return nil, wisun.ErrSecurityFail
	}
	return out, nil
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
