package mpsse

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
)

// FTDI USB identifiers.
const (
	VendorIDFTDI    = 0x0403
	ProductIDFT232R = 0x6001
	ProductIDFT2232 = 0x6010
	ProductIDFT4232 = 0x6011
	ProductIDFT232H = 0x6014
	ProductIDFTX    = 0x6015
)

// Settings configures the MPSSE engine during initialization.
type Settings struct {
	// Reset issues a SIO reset before configuring the engine.
	Reset          bool
	// InTransferSize is the USB IN request size in bytes.
	InTransferSize uint32
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// LatencyTimer is rounded down to whole milliseconds (1-255).
	LatencyTimer   time.Duration
	// Mask is the AD bus direction mask, 1 meaning output.
	Mask           byte
	// ClockFrequency is the MPSSE clock. Zero means unset.
	ClockFrequency physic.Frequency
}

// DeviceInfo describes an opened or enumerated FTDI device.
type DeviceInfo struct {
	Type         string
	VendorID     uint16
	ProductID    uint16
	SerialNumber string
	Description  string
	Bus          int
	Address      int
}

// Label returns a user-friendly description of the device.
func (i DeviceInfo) Label() string {
	if i.Description != "" {
		return fmt.Sprintf("%s [%s]", i.Description, i.SerialNumber)
	}
	return fmt.Sprintf("%s (%04X:%04X)", i.Type, i.VendorID, i.ProductID)
}

// Driver is the narrow interface between the FT232H core and the hardware.
//
// Implementations are not safe for concurrent use; callers serialize access.
type Driver interface {
	Info() DeviceInfo
	Initialize(s Settings) error
	SetClock(f physic.Frequency) error
	// Exec writes the command buffer and reads back exactly cmd.ReadLen() bytes.
	Exec(cmd *Command) ([]byte, error)
	SetGPIOLower(value, direction byte) error
	GPIOLower() (byte, error)
	Close() error
}

var (
	ErrDeviceNotFound     = errors.New("mpsse: device not found")
	ErrDeviceTypeMismatch = errors.New("mpsse: device type mismatch")
	ErrTimeout            = errors.New("mpsse: timeout")
	ErrConfiguration      = errors.New("mpsse: configuration error")
	// ErrResponseLength means the engine sent more bytes than the command
	// asked for; later responses would be misaligned.
	ErrResponseLength = errors.New("mpsse: unexpected response length")
)

// DeviceTypeError reports a device of the wrong chip family.
type DeviceTypeError struct {
	Expected string
	Actual   string
}

func (e *DeviceTypeError) Error() string {
	return fmt.Sprintf("mpsse: expected %s device, found %s", e.Expected, e.Actual)
}

func (e *DeviceTypeError) Unwrap() error {
	return ErrDeviceTypeMismatch
}

// TimeoutError reports a transport operation that exceeded its timeout.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mpsse: %s timed out after %s: %v", e.Op, e.Timeout, e.Err)
	}
	return fmt.Sprintf("mpsse: %s timed out after %s", e.Op, e.Timeout)
}

func (e *TimeoutError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTimeout}
	}
	return []error{ErrTimeout, e.Err}
}

// Timeout reports true; it lets callers test with a net.Error style assertion.
func (e *TimeoutError) Timeout() bool {
	return true
}

// TypeName returns the chip family name for an FTDI product ID.
func TypeName(pid uint16) string {
	switch pid {
	case ProductIDFT232R:
		return "FT232R"
	case ProductIDFT2232:
		return "FT2232H"
	case ProductIDFT4232:
		return "FT4232H"
	case ProductIDFT232H:
		return "FT232H"
	case ProductIDFTX:
		return "FT-X"
	default:
		return fmt.Sprintf("unknown(0x%04X)", pid)
	}
}
