package ft232h

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/OpenTraceLab/OpenTraceFTDI/pkg/mpsse"
)

// I2C is an I2C controller view over AD0-AD2 with 7-bit addressing. SDA is
// driven on AD1 and sampled on AD2; the two must be tied together, with
// pull-ups on SDA and SCL.
//
// Three phase clocking is enabled while the view exists, so the effective
// bus rate is two thirds of the engine clock.
type I2C struct {
	ex *exclusive
}

func newI2C(ex *exclusive) (*I2C, error) {
	err := ex.claim(PinUseI2C, []uint8{AD0, AD1, AD2}, func(s *deviceState) error {
		direction := (s.direction | pinSCL | pinSDAO) &^ pinSDAI
		value := s.value | pinSCL | pinSDAO
		cmd := mpsse.NewCommand().
			Enable3PhaseClocking().
			SetGPIOLower(value, direction)
		if _, err := s.drv.Exec(cmd); err != nil {
			return err
		}
		s.value, s.direction = value, direction
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &I2C{ex: ex}, nil
}

// Write writes w to the target at addr.
func (b *I2C) Write(addr uint8, w []byte) error {
	return b.WriteRead(addr, w, nil)
}

// Read fills r from the target at addr.
func (b *I2C) Read(addr uint8, r []byte) error {
	return b.WriteRead(addr, nil, r)
}

// WriteRead writes w then, after a repeated start, fills r. With both empty
// it only checks that addr acknowledges.
func (b *I2C) WriteRead(addr uint8, w, r []byte) error {
	if addr > 0x7F {
		return fmt.Errorf("ft232h: i2c: address 0x%02X is not a 7-bit address", addr)
	}
	return b.ex.withExclusiveAccess(func(s *deviceState) error {
		return s.i2cTx(addr, w, r)
	})
}

// Tx implements i2c.Bus.
func (b *I2C) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return fmt.Errorf("ft232h: i2c: address 0x%X is not a 7-bit address", addr)
	}
	return b.WriteRead(uint8(addr), w, r)
}

// SetSpeed implements i2c.Bus. The engine clock is set to f; the bus runs at
// two thirds of it.
func (b *I2C) SetSpeed(f physic.Frequency) error {
	return b.ex.withExclusiveAccess(func(s *deviceState) error {
		return s.drv.SetClock(f)
	})
}

func (b *I2C) String() string { return "ft232h-i2c" }

func (s *deviceState) i2cBase() byte {
	return s.value &^ (pinSCL | pinSDAO)
}

func (s *deviceState) i2cDir(driveSDA bool) byte {
	d := s.direction | pinSCL
	if driveSDA {
		return d | pinSDAO
	}
	return d &^ pinSDAO
}

func (s *deviceState) i2cStart(cmd *mpsse.Command, repeated bool) {
	base, dir := s.i2cBase(), s.i2cDir(true)
	if repeated {
		cmd.SetGPIOLower(base|pinSDAO, dir)
	}
	cmd.SetGPIOLower(base|pinSCL|pinSDAO, dir).
		SetGPIOLower(base|pinSCL, dir).
		SetGPIOLower(base, dir)
}

func (s *deviceState) i2cStop() error {
	base, dir := s.i2cBase(), s.i2cDir(true)
	cmd := mpsse.NewCommand().
		SetGPIOLower(base, dir).
		SetGPIOLower(base|pinSCL, dir).
		SetGPIOLower(base|pinSCL|pinSDAO, dir)
	if _, err := s.drv.Exec(cmd); err != nil {
		return fmt.Errorf("ft232h: i2c stop: %w", err)
	}
	return nil
}

// i2cSendByte clocks b out and reads the target's acknowledge bit.
func (s *deviceState) i2cSendByte(cmd *mpsse.Command, b byte) {
	base := s.i2cBase()
	cmd.SetGPIOLower(base, s.i2cDir(true)).
		ClockBitsOut(mpsse.EdgeNeg, b, 8).
		SetGPIOLower(base, s.i2cDir(false)).
		ClockBitsIn(mpsse.EdgePos, 1)
}

// i2cRecvByte clocks a byte in and answers with ACK, or NACK for the last.
func (s *deviceState) i2cRecvByte(cmd *mpsse.Command, last bool) {
	base := s.i2cBase()
	ack := byte(0x00)
	if last {
		ack = 0x80
	}
	cmd.SetGPIOLower(base, s.i2cDir(false)).
		ClockBitsIn(mpsse.EdgePos, 8).
		SetGPIOLower(base, s.i2cDir(true)).
		ClockBitsOut(mpsse.EdgeNeg, ack, 1)
}

// i2cAddress sends a start condition and the address byte. A missing
// acknowledge ends the transaction with a stop.
func (s *deviceState) i2cAddress(addr uint8, read, repeated bool) error {
	b := addr << 1
	if read {
		b |= 1
	}
	cmd := mpsse.NewCommand()
	s.i2cStart(cmd, repeated)
	s.i2cSendByte(cmd, b)
	cmd.SendImmediate()
	resp, err := s.drv.Exec(cmd)
	if err != nil {
		return fmt.Errorf("ft232h: i2c address: %w", err)
	}
	if resp[0]&1 != 0 {
		return s.i2cAbort(fmt.Errorf("%w: address 0x%02X", ErrNoAck, addr))
	}
	return nil
}

func (s *deviceState) i2cAbort(err error) error {
	if stopErr := s.i2cStop(); stopErr != nil {
		return fmt.Errorf("%w (%v)", err, stopErr)
	}
	return err
}

func (s *deviceState) i2cTx(addr uint8, w, r []byte) error {
	if len(w) > 0 || len(r) == 0 {
		if err := s.i2cAddress(addr, false, false); err != nil {
			return err
		}
	}
	if len(w) > 0 {
		cmd := mpsse.NewCommand()
		for _, b := range w {
			s.i2cSendByte(cmd, b)
		}
		cmd.SendImmediate()
		acks, err := s.drv.Exec(cmd)
		if err != nil {
			return fmt.Errorf("ft232h: i2c write: %w", err)
		}
		for i, a := range acks {
			if a&1 != 0 {
				return s.i2cAbort(fmt.Errorf("%w: byte %d to 0x%02X", ErrNoAck, i, addr))
			}
		}
	}
	if len(r) > 0 {
		if err := s.i2cAddress(addr, true, len(w) > 0); err != nil {
			return err
		}
		cmd := mpsse.NewCommand()
		for i := range r {
			s.i2cRecvByte(cmd, i == len(r)-1)
		}
		cmd.SendImmediate()
		data, err := s.drv.Exec(cmd)
		if err != nil {
			return fmt.Errorf("ft232h: i2c read: %w", err)
		}
		copy(r, data)
	}
	return s.i2cStop()
}

var _ i2c.Bus = (*I2C)(nil)
