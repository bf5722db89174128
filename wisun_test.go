package wisun_test

import (
	"errors"
	"testing"

	"github.com/soypat/wisun"
)

func TestEUI64String(t *testing.T) {
	e := wisun.EUI64{0x00, 0x0d, 0x6f, 0x00, 0x01, 0x02, 0x03, 0x04}
	want := "00:0d:6f:00:01:02:03:04"
	if got := e.String(); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	var zero wisun.EUI64
	if !zero.IsZero() {
		t.Fatal("zero EUI64 not reported as zero")
	}
	if e.IsZero() {
		t.Fatal("non-zero EUI64 reported as zero")
	}
}

func TestErrKindTransient(t *testing.T) {
	transient := []wisun.ErrKind{wisun.ErrBusyChannel, wisun.ErrTxNoAck}
	terminal := []wisun.ErrKind{wisun.ErrSecurityFail, wisun.ErrCounterError, wisun.ErrRcpTransport}
	for _, e := range transient {
		if !e.Transient() {
			t.Errorf("%s: expected transient", e)
		}
	}
	for _, e := range terminal {
		if e.Transient() {
			t.Errorf("%s: expected terminal", e)
		}
	}
}

func TestValidatorSingleError(t *testing.T) {
	var v wisun.Validator
	errA := errors.New("a")
	errB := errors.New("b")
	v.AddError(errA)
	v.AddError(errB) // dropped: allowMultiErrs defaults false
	if !errors.Is(v.Err(), errA) {
		t.Fatalf("expected only first error retained, got %v", v.Err())
	}
}

func TestValidatorMultiError(t *testing.T) {
	v := wisun.NewValidator(true)
	errA := errors.New("a")
	errB := errors.New("b")
	v.AddError(errA)
	v.AddError(errB)
	err := v.Err()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected both errors joined, got %v", err)
	}
}

func TestCRC791(t *testing.T) {
	var crc wisun.CRC791
	crc.WriteEven([]byte{0x00, 0x01, 0x00, 0x02})
	sum := crc.Sum16()
	if sum == 0 {
		t.Fatal("expected non-zero checksum")
	}
	crc.Reset()
	if crc.Sum16() != 0xffff {
		t.Fatalf("expected all-ones checksum for empty sum, got %#x", crc.Sum16())
	}
}
