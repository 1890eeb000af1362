// Package retry provides the exponential backoff policy applied to
// transient fetch failures.
package retry

import (
	"math"
	"time"
)

// Policy describes exponential backoff: delay(n) = Base * Multiplier^(n-1),
// capped at Cap. n counts consecutive failures and starts at 1.
type Policy struct {
	Base       time.Duration
	Multiplier float64
	Cap        time.Duration
}

// DefaultPolicy returns the backoff policy used for feed fetching:
// 1m base, doubling, capped at 1h.
func DefaultPolicy() Policy {
	return Policy{
		Base:       time.Minute,
		Multiplier: 2.0,
		Cap:        time.Hour,
	}
}

// Delay returns the wait before the next attempt after failures consecutive
// failures. Zero failures means no delay.
func (p Policy) Delay(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}

	base := p.Base
	if base <= 0 {
		base = time.Minute
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2.0
	}

	d := time.Duration(float64(base) * math.Pow(mult, float64(failures-1)))
	if p.Cap > 0 && d > p.Cap {
		d = p.Cap
	}
	return d
}
