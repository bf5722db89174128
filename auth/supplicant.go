// Package auth implements the border router's authenticator side of
// Wi-SUN network admission: an EAP-TLS handshake followed by an IEEE
// 802.11-style 4-way handshake carried over EAPOL frames, deriving a PTK
// per supplicant and delivering the active GTK/LGTK (§4.5).
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/soypat/wisun"
	"github.com/soypat/wisun/internal"
	"github.com/soypat/wisun/mac"
)

// State is a supplicant's position in the admission conversation (§4.5).
type State uint8

const (
	StateIdle State = iota
	StateEAPTLS
	State4WH
	StateGKH
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEAPTLS:
		return "eap-tls"
	case State4WH:
		return "4wh"
	case StateGKH:
		return "gkh"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "state(?)"
	}
}

var (
	ErrWrongState   = errors.New("auth: message received in wrong state")
	ErrMICMismatch  = errors.New("auth: MIC mismatch")
	ErrRetriesUsed  = errors.New("auth: retry budget exhausted")
	ErrTLSHandshake = errors.New("auth: TLS handshake failed")
)

// RetryParams bounds the per-message 4WH retry policy (§4.5 "N retries
// per message with exponential backoff").
type RetryParams struct {
	Imin    time.Duration
	Imax    time.Duration
	Max     int
}

// Supplicant is one node's admission conversation. SessionID correlates
// this negotiation's log lines and management-bus events (§Domain Stack:
// google/uuid for transaction correlation).
type Supplicant struct {
	SessionID uuid.UUID
	EUI64     wisun.EUI64
	Role      wisun.NodeRole

	state State
	tlsConn *tls.Conn // driven in-memory via net.Pipe by the EAP-TLS transport adapter.

	pmk [32]byte
	ptk [48]byte // KCK(16) || KEK(16) || TK(16), 802.11 4-way handshake layout.
	anonce [32]byte
	snonce [32]byte

	retries     int
	retryParams RetryParams
	backoff     internal.Backoff
	lastSent    time.Time

	deadline time.Time // overall transaction timeout.

	activeKeyIndex uint8
	activeKeyIsLGTK bool
	gkhCounter     uint32 // nonce counter for group-key-delivery wraps, incremented per message.
}

// NewSupplicant begins tracking a new admission conversation for eui in
// StateIdle; HandleEAPOLStart moves it on to eap-tls (§4.5).
func NewSupplicant(eui wisun.EUI64, retry RetryParams, transactionTimeout time.Duration, now time.Time) *Supplicant {
	return &Supplicant{
		SessionID:   uuid.New(),
		EUI64:       eui,
		state:       StateIdle,
		retryParams: retry,
		backoff:     internal.NewBackoff(internal.BackoffCriticalPath, retry.Imin, retry.Imax),
		deadline:    now.Add(transactionTimeout),
	}
}

// State reports the supplicant's current conversation state.
func (s *Supplicant) State() State { return s.state }

// Expired reports whether the overall transaction timeout has elapsed.
func (s *Supplicant) Expired(now time.Time) bool { return now.After(s.deadline) }

// HandleEAPOLStart transitions idle -> eap-tls, per §4.5.
func (s *Supplicant) HandleEAPOLStart() error {
	if s.state != StateIdle {
		return ErrWrongState
	}
	s.state = StateEAPTLS
	return nil
}

// CompleteEAPTLS is called once the in-memory TLS handshake driven by the
// EAP-TLS transport adapter finishes successfully; it derives the PMK
// from the negotiated TLS exporter keying material (RFC 5216-style EAP-TLS
// key derivation) and transitions to the 4-way handshake.
func (s *Supplicant) CompleteEAPTLS(conn *tls.Conn) error {
	if s.state != StateEAPTLS {
		return ErrWrongState
	}
	km, err := conn.ConnectionState().ExportKeyingMaterial("EXTENDED KEY MATERIAL", nil, len(s.pmk))
	if err != nil {
		return ErrTLSHandshake
	}
	copy(s.pmk[:], km)
	s.tlsConn = conn
	s.state = State4WH
	if _, err := rand.Read(s.anonce[:]); err != nil {
		return err
	}
	return nil
}

// BuildMessage1 returns the 4WH message 1 payload (ANonce), to be sent
// over an EAPOL frame (§4.5).
func (s *Supplicant) BuildMessage1() []byte {
	return append([]byte(nil), s.anonce[:]...)
}

// HandleMessage2 validates the supplicant's SNonce+MIC and derives the
// PTK (§4.5). On MIC mismatch the message is dropped, not failed outright,
// so a retransmission of message 1 can be answered again.
func (s *Supplicant) HandleMessage2(snonce [32]byte, mic [32]byte) error {
	if s.state != State4WH {
		return ErrWrongState
	}
	s.snonce = snonce
	candidatePTK := derivePTK(s.pmk, s.anonce, s.snonce, s.EUI64)
	if !hmac.Equal(computeMIC(candidatePTK, snonce[:])[:], mic[:]) {
		return ErrMICMismatch
	}
	s.ptk = candidatePTK
	return nil
}

// BuildMessage3 returns the message 3 payload (an install directive),
// MIC-protected with the now-derived KCK.
func (s *Supplicant) BuildMessage3() []byte {
	mic := computeMIC(s.ptk, s.anonce[:])
	return append(append([]byte(nil), s.anonce[:]...), mic[:]...)
}

// HandleMessage4 completes the 4WH on receipt of the supplicant's ack,
// transitioning to group-key delivery (§4.5).
func (s *Supplicant) HandleMessage4(mic [32]byte) error {
	if s.state != State4WH {
		return ErrWrongState
	}
	want := computeMIC(s.ptk, s.snonce[:])
	if !hmac.Equal(want[:], mic[:]) {
		return ErrMICMismatch
	}
	s.state = StateGKH
	return nil
}

// BuildGroupKeyMessage encrypts key (GTK or LGTK) under the PTK's KEK for
// delivery to the supplicant (§4.5 "gkh: deliver the active group
// transient key").
func (s *Supplicant) BuildGroupKeyMessage(keyIndex uint8, isLGTK bool, key [16]byte) ([]byte, error) {
	s.activeKeyIndex = keyIndex
	s.activeKeyIsLGTK = isLGTK
	wrapped, err := wrapKey(s.ptk, s.EUI64, s.gkhCounter, key)
	if err != nil {
		return nil, err
	}
	s.gkhCounter++
	out := append([]byte{keyIndex, boolToByte(isLGTK)}, wrapped...)
	return out, nil
}

// CompleteGroupKeyHandshake transitions gkh -> authenticated (§4.5).
func (s *Supplicant) CompleteGroupKeyHandshake() error {
	if s.state != StateGKH {
		return ErrWrongState
	}
	s.state = StateAuthenticated
	return nil
}

// RetryOrFail records a retry attempt for the message currently awaiting
// a reply, returning the backoff delay to wait before resending, or
// ErrRetriesUsed once the retry budget (RetryParams.Max) is exhausted.
func (s *Supplicant) RetryOrFail() (time.Duration, error) {
	if s.retries >= s.retryParams.Max {
		return 0, ErrRetriesUsed
	}
	s.retries++
	return s.backoff.NextWait(), nil
}

func derivePTK(pmk [32]byte, anonce, snonce [32]byte, eui wisun.EUI64) (ptk [48]byte) {
	h := hmac.New(sha256.New, pmk[:])
	h.Write(anonce[:])
	h.Write(snonce[:])
	h.Write(eui[:])
	sum := h.Sum(nil) // 32 bytes; expand to 48 with a second round, matching 802.11's PRF-384 shape.
	copy(ptk[:32], sum)
	h2 := hmac.New(sha256.New, pmk[:])
	h2.Write(sum)
	h2.Write([]byte("wisun-ptk-expand"))
	copy(ptk[32:], h2.Sum(nil)[:16])
	return ptk
}

func computeMIC(ptk [48]byte, msg []byte) (mic [32]byte) {
	kck := ptk[:16]
	h := hmac.New(sha256.New, kck)
	h.Write(msg)
	copy(mic[:], h.Sum(nil))
	return mic
}

// wrapKey encrypts a 16-byte group key under the PTK's KEK using the same
// AES-CCM* construction the MAC layer applies to data frames (mac.AEAD),
// rather than introducing a second AEAD construction for key wrap. The
// nonce reuses the 802.15.4 (EUI-64, counter, level) shape with counter a
// per-supplicant monotonic value, so no (KEK, nonce) pair is ever reused.
func wrapKey(ptk [48]byte, eui wisun.EUI64, counter uint32, key [16]byte) ([]byte, error) {
	var kek [16]byte
	copy(kek[:], ptk[16:32])
	aead, err := mac.NewAEAD(kek, 16)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, eui, counter, mac.SecLevelEncMIC128, nil, key[:]), nil
}

func boolToByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
