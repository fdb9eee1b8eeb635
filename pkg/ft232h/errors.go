package ft232h

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by views used after the device was closed.
	ErrClosed = errors.New("ft232h: device closed")
	// ErrNoAck is returned when an I2C target does not acknowledge.
	ErrNoAck = errors.New("ft232h: i2c no acknowledge")
)

// PreconditionKind classifies a programming error.
type PreconditionKind uint8

const (
	PinOutOfRange PreconditionKind = iota
	PinConflict
	MissingClockFrequency
	AlreadyInitialized
	StatePoisoned
)

// PreconditionError is the panic value for programming errors. It is never
// returned as an error: callers may retry errors but must not retry these.
type PreconditionError struct {
	Kind      PreconditionKind
	Pin       uint8
	Requested PinUse
	Current   PinUse
}

// String describes the violation.
func (e *PreconditionError) String() string {
	switch e.Kind {
	case PinOutOfRange:
		return fmt.Sprintf("ft232h: pin index %d is out of range 0 - %d", e.Pin, NumPins-1)
	case PinConflict:
		return fmt.Sprintf("ft232h: unable to allocate pin %d for %s, pin is already allocated for %s",
			e.Pin, e.Requested, e.Current)
	case MissingClockFrequency:
		return "ft232h: settings must specify a clock frequency"
	case AlreadyInitialized:
		return "ft232h: device was already initialized or closed"
	case StatePoisoned:
		return "ft232h: device state poisoned by a panic during a previous operation"
	default:
		return fmt.Sprintf("ft232h: precondition violation %d", e.Kind)
	}
}
