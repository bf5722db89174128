package wisun

import (
	"errors"
	"fmt"
)

// Validator accumulates structural-validation errors across a frame or
// config tree walk so callers can report every problem found in one pass
// instead of bailing out on the first. The zero value is ready to use.
type Validator struct {
	allowMultiErrs bool
	accum          []error
	accumBitpos    []BitPosErr
}

// NewValidator returns a Validator. When allowMultiErrs is false (the
// common case for frame parsing) only the first error added is kept;
// when true every error added is kept and Err joins them.
func NewValidator(allowMultiErrs bool) Validator {
	return Validator{allowMultiErrs: allowMultiErrs}
}

// ResetErr clears accumulated errors so the Validator can be reused.
func (v *Validator) ResetErr() {
	v.accum = v.accum[:0]
	v.accumBitpos = v.accumBitpos[:0]
}

// HasError reports whether any error has been added.
func (v *Validator) HasError() bool { return len(v.accum) != 0 }

// Err joins every accumulated error, or returns nil if none were added.
func (v *Validator) Err() error {
	switch len(v.accum) {
	case 0:
		return nil
	case 1:
		return v.accum[0]
	default:
		return errors.Join(v.accum...)
	}
}

// AddError records err. If allowMultiErrs is false only the first call has
// an effect, matching frame-validation's "report the first inconsistency"
// contract (§4.7/§4.2 ValidateSize methods).
func (v *Validator) AddError(err error) {
	if err == nil {
		panic("error argument to AddError cannot be nil")
	} else if len(v.accum) != 0 && !v.allowMultiErrs {
		return
	}
	v.accum = append(v.accum, err)
}

// AddBitPosErr records err alongside the bit range it was found at, useful
// when validating packed bitfields (802.15.4 frame control fields, IPHC
// dispatch bytes).
func (v *Validator) AddBitPosErr(bitStart, bitLen int, err error) {
	if err == nil {
		panic("err argument to AddBitPosErr cannot be nil")
	} else if bitLen <= 0 {
		panic("bitLen must be positive")
	}
	v.accumBitpos = append(v.accumBitpos, BitPosErr{BitStart: bitStart, BitLen: bitLen, Err: err})
	v.accum = append(v.accum, &v.accumBitpos[len(v.accumBitpos)-1])
}

// BitPosErr wraps an error with the bit range of the field that triggered it.
type BitPosErr struct {
	BitStart int
	BitLen   int
	Err      error
}

func (bpe *BitPosErr) Error() string {
	return fmt.Sprintf("%s at bits %d..%d", bpe.Err.Error(), bpe.BitStart, bpe.BitStart+bpe.BitLen)
}
