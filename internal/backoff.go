package internal

import "time"

// BackoffFlags tunes the max backoff ceiling for a given retry class. The
// event loop never blocks (§5), so Backoff never sleeps; callers use it to
// compute the delay to hand to the timer wheel before retrying.
type BackoffFlags uint8

const (
	BackoffHasPriority BackoffFlags = 1 << iota
	BackoffCriticalPath
	// BackoffRadioRetry is used for CCA-fail/no-ack MAC retry backoff (§4.2).
	BackoffRadioRetry
)

const backoffMinWait = time.Millisecond

func backoffMaxWait(priority BackoffFlags) time.Duration {
	switch {
	case priority&BackoffCriticalPath != 0:
		return 50 * time.Millisecond
	case priority&BackoffRadioRetry != 0:
		return 2 * time.Second
	default:
		return time.Second >> (priority & BackoffHasPriority)
	}
}

// NewBackoff returns a Backoff ready for use with the given min/max wait
// bounds. If min or max is zero the class default from priority is used,
// matching the "min/max configurable, doubled per attempt" requirement of
// §4.2's CCA-fail/no-ack retry policy.
func NewBackoff(priority BackoffFlags, min, max time.Duration) Backoff {
	if min <= 0 {
		min = backoffMinWait
	}
	if max <= 0 {
		max = backoffMaxWait(priority)
	}
	return Backoff{
		wait:      uint64(min),
		maxWait:   uint64(max),
		startWait: uint64(min),
	}
}

// A Backoff with a non-zero MaxWait is ready for use.
type Backoff struct {
	// wait defines the amount of time that NextWait will return on next call.
	wait uint64
	// Maximum allowable value for wait.
	maxWait uint64
	// startWait is the intial wait value, as well as the value that wait takes after a call to Hit.
	startWait uint64
}

// Hit resets the backoff to its starting wait, called on a successful TX.
func (eb *Backoff) Hit() {
	if eb.maxWait == 0 {
		panic("MaxWait cannot be zero")
	}
	eb.wait = eb.startWait
}

// NextWait returns the delay to wait before the next retry attempt and
// doubles the internal wait for the attempt after that, capped at maxWait.
// It performs no blocking; the caller schedules a timer for the returned
// duration.
func (eb *Backoff) NextWait() time.Duration {
	if eb.maxWait == 0 {
		panic("MaxWait cannot be zero")
	}
	wait := time.Duration(eb.wait)
	eb.wait *= 2
	if eb.wait > eb.maxWait {
		eb.wait = eb.maxWait
	}
	return wait
}
