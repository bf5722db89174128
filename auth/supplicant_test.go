package auth

import (
	"bytes"
	"testing"
	"time"

	"github.com/soypat/wisun"
	"github.com/soypat/wisun/mac"
)

// TestEAPOLStartTransitionsToEAPTLS covers the idle -> eap-tls edge of the
// conversation state machine (§4.5).
func TestEAPOLStartTransitionsToEAPTLS(t *testing.T) {
	eui := wisun.EUI64{1, 2, 3, 4, 5, 6, 7, 8}
	s := NewSupplicant(eui, RetryParams{Imin: 50 * time.Millisecond, Imax: time.Second, Max: 3}, 30*time.Second, time.Unix(0, 0))
	if err := s.HandleEAPOLStart(); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateEAPTLS {
		t.Fatalf("expected eap-tls after EAPOL-Start, got %v", s.State())
	}
	if err := s.HandleEAPOLStart(); err != ErrWrongState {
		t.Fatalf("expected wrong-state on duplicate EAPOL-Start, got %v", err)
	}
}

func TestMessage2MICMismatchRejected(t *testing.T) {
	eui := wisun.EUI64{1}
	s := NewSupplicant(eui, RetryParams{Imin: time.Millisecond, Imax: time.Millisecond, Max: 1}, time.Second, time.Unix(0, 0))
	s.HandleEAPOLStart()
	// Force into 4wh with a known PMK for a deterministic MIC check.
	s.state = State4WH
	s.pmk = [32]byte{0xaa}
	s.anonce = [32]byte{0xbb}

	var snonce [32]byte
	snonce[0] = 0xcc
	badMIC := [32]byte{0xff}
	if err := s.HandleMessage2(snonce, badMIC); err != ErrMICMismatch {
		t.Fatalf("expected MIC mismatch, got %v", err)
	}
}

func TestMessage2ValidMICAccepted(t *testing.T) {
	eui := wisun.EUI64{1}
	s := NewSupplicant(eui, RetryParams{Imin: time.Millisecond, Imax: time.Millisecond, Max: 1}, time.Second, time.Unix(0, 0))
	s.state = State4WH
	s.pmk = [32]byte{0xaa}
	s.anonce = [32]byte{0xbb}

	var snonce [32]byte
	snonce[0] = 0xcc
	ptk := derivePTK(s.pmk, s.anonce, snonce, eui)
	mic := computeMIC(ptk, snonce[:])

	if err := s.HandleMessage2(snonce, mic); err != nil {
		t.Fatalf("expected valid MIC accepted: %v", err)
	}
	if s.ptk != ptk {
		t.Fatal("expected derived PTK stored on supplicant")
	}
}

func TestRetryBudgetExhausted(t *testing.T) {
	s := NewSupplicant(wisun.EUI64{1}, RetryParams{Imin: time.Millisecond, Imax: time.Millisecond, Max: 2}, time.Second, time.Unix(0, 0))
	if _, err := s.RetryOrFail(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RetryOrFail(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RetryOrFail(); err != ErrRetriesUsed {
		t.Fatalf("expected retries exhausted, got %v", err)
	}
}

func TestGroupKeyMessageEncryptsKeyUnderKEK(t *testing.T) {
	eui := wisun.EUI64{1}
	s := NewSupplicant(eui, RetryParams{Imin: time.Millisecond, Imax: time.Millisecond, Max: 1}, time.Second, time.Unix(0, 0))
	s.ptk = [48]byte{1, 2, 3}
	key := [16]byte{0x11, 0x22}
	msg, err := s.BuildGroupKeyMessage(2, false, key)
	if err != nil {
		t.Fatal(err)
	}
	if msg[0] != 2 || msg[1] != 0 {
		t.Fatalf("unexpected header bytes: %v", msg[:2])
	}
	wrapped := msg[2:]
	if bytes.Contains(wrapped, key[:]) {
		t.Fatal("group key must not appear in the clear in the wrapped message")
	}

	var kek [16]byte
	copy(kek[:], s.ptk[16:32])
	aead, err := mac.NewAEAD(kek, 16)
	if err != nil {
		t.Fatal(err)
	}
	got, err := aead.Open(nil, eui, 0, mac.SecLevelEncMIC128, nil, wrapped)
	if err != nil {
		t.Fatalf("failed to decrypt wrapped key: %v", err)
	}
	if !bytes.Equal(got, key[:]) {
		t.Fatalf("decrypted key mismatch: got %x want %x", got, key[:])
	}

	// A second message must use a distinct nonce counter so (KEK, nonce)
	// is never reused across group-key deliveries to the same supplicant.
	msg2, err := s.BuildGroupKeyMessage(3, true, key)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(msg[2:], msg2[2:]) {
		t.Fatal("expected distinct ciphertext for distinct nonce counters")
	}
}
