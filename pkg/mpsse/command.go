package mpsse

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// MPSSE opcodes (FTDI AN_108).
const (
	OpClockBytesOutPos   = 0x10
	OpClockBytesOutNeg   = 0x11
	OpClockBitsOutPos    = 0x12
	OpClockBitsOutNeg    = 0x13
	OpClockBytesInPos    = 0x20
	OpClockBytesInNeg    = 0x24
	OpClockBitsInPos     = 0x22
	OpClockBitsInNeg     = 0x26
	OpClockBytesInPosOut = 0x31 // out on -ve edge, in on +ve edge
	OpClockBytesInNegOut = 0x34 // out on +ve edge, in on -ve edge
	OpSetDataBitsLow     = 0x80
	OpReadDataBitsLow    = 0x81
	OpSetDataBitsHigh    = 0x82
	OpReadDataBitsHigh   = 0x83
	OpLoopbackEnable     = 0x84
	OpLoopbackDisable    = 0x85
	OpSetClockDivisor    = 0x86
	OpSendImmediate      = 0x87
	OpDisableClockDiv5   = 0x8A
	OpEnableClockDiv5    = 0x8B
	OpEnable3Phase       = 0x8C
	OpDisable3Phase      = 0x8D
	OpDisableAdaptive    = 0x97

	// The engine answers an unknown opcode with BadCommand followed by the opcode.
	BadCommand = 0xFA
)

// MaxTransferBytes is the largest payload of a single byte-clocking command.
const MaxTransferBytes = 65536

// ClockEdge selects the clock edge data is shifted on.
type ClockEdge uint8

const (
	EdgeNeg ClockEdge = iota
	EdgePos
)

// Command accumulates MPSSE opcodes and tracks how many bytes the engine will
// return once the buffer is executed.
type Command struct {
	buf     []byte
	readLen int
	err     error
}

// NewCommand returns an empty command buffer.
func NewCommand() *Command {
	return &Command{}
}

// Bytes returns the encoded buffer.
func (c *Command) Bytes() []byte {
	return c.buf
}

// ReadLen returns the number of response bytes the buffer produces.
func (c *Command) ReadLen() int {
	return c.readLen
}

// Err returns the first encoding error, if any.
func (c *Command) Err() error {
	return c.err
}

func (c *Command) fail(format string, args ...any) *Command {
	if c.err == nil {
		c.err = fmt.Errorf("mpsse: "+format, args...)
	}
	return c
}

// SetGPIOLower drives the AD bus.
func (c *Command) SetGPIOLower(value, direction byte) *Command {
	c.buf = append(c.buf, OpSetDataBitsLow, value, direction)
	return c
}

// SetGPIOUpper drives the AC bus.
func (c *Command) SetGPIOUpper(value, direction byte) *Command {
	c.buf = append(c.buf, OpSetDataBitsHigh, value, direction)
	return c
}

// GPIOLower reads the AD bus; it adds one response byte.
func (c *Command) GPIOLower() *Command {
	c.buf = append(c.buf, OpReadDataBitsLow)
	c.readLen++
	return c
}

// ClockBytesOut shifts data out MSB first without capturing input.
func (c *Command) ClockBytesOut(edge ClockEdge, data []byte) *Command {
	op := byte(OpClockBytesOutNeg)
	if edge == EdgePos {
		op = OpClockBytesOutPos
	}
	return c.bytesCmd(op, len(data), data, false)
}

// ClockBytesIn shifts n bytes in MSB first.
func (c *Command) ClockBytesIn(edge ClockEdge, n int) *Command {
	op := byte(OpClockBytesInPos)
	if edge == EdgeNeg {
		op = OpClockBytesInNeg
	}
	return c.bytesCmd(op, n, nil, true)
}

// ClockBytes shifts data out on outEdge while capturing on the opposite edge.
func (c *Command) ClockBytes(outEdge ClockEdge, data []byte) *Command {
	op := byte(OpClockBytesInPosOut)
	if outEdge == EdgePos {
		op = OpClockBytesInNegOut
	}
	return c.bytesCmd(op, len(data), data, true)
}

func (c *Command) bytesCmd(op byte, n int, data []byte, read bool) *Command {
	if n < 1 || n > MaxTransferBytes {
		return c.fail("byte count %d out of range 1 - %d", n, MaxTransferBytes)
	}
	l := n - 1
	c.buf = append(c.buf, op, byte(l), byte(l>>8))
	c.buf = append(c.buf, data...)
	if read {
		c.readLen += n
	}
	return c
}

// ClockBitsOut shifts the top n bits of value out MSB first.
func (c *Command) ClockBitsOut(edge ClockEdge, value byte, n int) *Command {
	if n < 1 || n > 8 {
		return c.fail("bit count %d out of range 1 - 8", n)
	}
	op := byte(OpClockBitsOutNeg)
	if edge == EdgePos {
		op = OpClockBitsOutPos
	}
	c.buf = append(c.buf, op, byte(n-1), value)
	return c
}

// ClockBitsIn shifts n bits in; it adds one response byte.
func (c *Command) ClockBitsIn(edge ClockEdge, n int) *Command {
	if n < 1 || n > 8 {
		return c.fail("bit count %d out of range 1 - 8", n)
	}
	op := byte(OpClockBitsInPos)
	if edge == EdgeNeg {
		op = OpClockBitsInNeg
	}
	c.buf = append(c.buf, op, byte(n-1))
	c.readLen++
	return c
}

// Enable3PhaseClocking makes data valid on both clock edges, as I2C requires.
func (c *Command) Enable3PhaseClocking() *Command {
	c.buf = append(c.buf, OpEnable3Phase)
	return c
}

// Disable3PhaseClocking restores two phase clocking.
func (c *Command) Disable3PhaseClocking() *Command {
	c.buf = append(c.buf, OpDisable3Phase)
	return c
}

// SetClock programs the divisor computed by ClockDivisor.
func (c *Command) SetClock(f physic.Frequency) *Command {
	div, div5, err := ClockDivisor(f)
	if err != nil {
		if c.err == nil {
			c.err = err
		}
		return c
	}
	if div5 {
		c.buf = append(c.buf, OpEnableClockDiv5)
	} else {
		c.buf = append(c.buf, OpDisableClockDiv5)
	}
	c.buf = append(c.buf, OpDisableAdaptive, OpSetClockDivisor, byte(div), byte(div>>8))
	return c
}

// Loopback connects TDI/DO to TDO/DI internally.
func (c *Command) Loopback(enable bool) *Command {
	if enable {
		c.buf = append(c.buf, OpLoopbackEnable)
	} else {
		c.buf = append(c.buf, OpLoopbackDisable)
	}
	return c
}

// SendImmediate flushes the engine's response buffer to the host.
func (c *Command) SendImmediate() *Command {
	c.buf = append(c.buf, OpSendImmediate)
	return c
}
