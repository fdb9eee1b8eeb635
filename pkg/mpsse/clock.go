package mpsse

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// Base clocks of the high speed chips, already halved by the engine.
const (
	baseClockDiv5   = 6 * physic.MegaHertz
	baseClockNoDiv5 = 30 * physic.MegaHertz
)

// MaxClock is the fastest MPSSE clock on an FT232H.
const MaxClock = baseClockNoDiv5

// ClockDivisor computes the MPSSE divisor for f and whether the divide-by-5
// prescaler must be enabled.
func ClockDivisor(f physic.Frequency) (divisor uint16, div5 bool, err error) {
	if f < physic.Hertz || f > MaxClock {
		return 0, false, fmt.Errorf("%w: clock %s out of range 1Hz - %s", ErrConfiguration, f, MaxClock)
	}
	base := baseClockNoDiv5
	if f <= baseClockDiv5 {
		base = baseClockDiv5
		div5 = true
	}
	d := int64(base/physic.Hertz)/int64(f/physic.Hertz) - 1
	if d > 0xFFFF {
		return 0, false, fmt.Errorf("%w: clock %s too slow", ErrConfiguration, f)
	}
	return uint16(d), div5, nil
}

// ActualClock returns the frequency produced by a divisor.
func ActualClock(divisor uint16, div5 bool) physic.Frequency {
	base := baseClockNoDiv5
	if div5 {
		base = baseClockDiv5
	}
	return base / physic.Frequency(int64(divisor)+1)
}
