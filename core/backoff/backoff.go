package backoff

import "time"

// Backoff tracks consecutive failures of a recurring background operation
// and the earliest time the next attempt is allowed. Both the edge health
// poller and the auto-sync scheduler share this shape; only base/cap differ.
type Backoff struct {
	Base        time.Duration
	Cap         time.Duration
	MaxFailures int

	failures int
	next     time.Time
}

// New returns a Backoff that allows an immediate first attempt.
func New(base, cap time.Duration, maxFailures int) Backoff {
	return Backoff{Base: base, Cap: cap, MaxFailures: maxFailures}
}

// Ready reports whether an attempt is allowed at the given time.
func (b *Backoff) Ready(now time.Time) bool {
	return !now.Before(b.next)
}

// RecordFailure increments the failure count (capped) and pushes the next
// eligible time out by Base doubled per prior failure, capped at Cap.
func (b *Backoff) RecordFailure(now time.Time) {
	if b.failures < b.MaxFailures {
		b.failures++
	}
	delay := b.Base
	for i := 1; i < b.failures; i++ {
		delay *= 2
		if delay >= b.Cap {
			delay = b.Cap
			break
		}
	}
	if delay > b.Cap {
		delay = b.Cap
	}
	b.next = now.Add(delay)
}

// Reset clears the failure count and allows an immediate attempt.
func (b *Backoff) Reset() {
	b.failures = 0
	b.next = time.Time{}
}

// Failures returns the current consecutive failure count.
func (b *Backoff) Failures() int { return b.failures }

// NextEligible returns the earliest time the next attempt is allowed.
// The zero time means no failure has been recorded since the last reset.
func (b *Backoff) NextEligible() time.Time { return b.next }
