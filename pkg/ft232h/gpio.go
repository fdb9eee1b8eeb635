package ft232h

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// OutputPin is a push-pull output on one AD pin.
type OutputPin struct {
	ex  *exclusive
	idx uint8
}

func newOutputPin(ex *exclusive, idx uint8) (*OutputPin, error) {
	err := ex.claim(PinUseOutput, []uint8{idx}, func(s *deviceState) error {
		return s.writeGPIO(s.value, s.direction|1<<idx)
	})
	if err != nil {
		return nil, err
	}
	return &OutputPin{ex: ex, idx: idx}, nil
}

func (p *OutputPin) mask() byte { return 1 << p.idx }

// SetHigh drives the pin high.
func (p *OutputPin) SetHigh() error { return p.set(true) }

// SetLow drives the pin low.
func (p *OutputPin) SetLow() error { return p.set(false) }

func (p *OutputPin) set(high bool) error {
	return p.ex.withExclusiveAccess(func(s *deviceState) error {
		value := s.value &^ p.mask()
		if high {
			value |= p.mask()
		}
		return s.writeGPIO(value, s.direction)
	})
}

// IsSetHigh reports the level last written to the pin.
func (p *OutputPin) IsSetHigh() (bool, error) {
	var high bool
	err := p.ex.withExclusiveAccess(func(s *deviceState) error {
		high = s.value&p.mask() != 0
		return nil
	})
	return high, err
}

// Sample reads the pin level back from the device.
func (p *OutputPin) Sample() (gpio.Level, error) {
	var level gpio.Level
	err := p.ex.withExclusiveAccess(func(s *deviceState) error {
		v, err := s.drv.GPIOLower()
		if err != nil {
			return err
		}
		level = v&p.mask() != 0
		return nil
	})
	return level, err
}

// Out implements gpio.PinOut.
func (p *OutputPin) Out(l gpio.Level) error { return p.set(bool(l)) }

// PWM implements gpio.PinOut. The AD bus has no PWM.
func (p *OutputPin) PWM(gpio.Duty, physic.Frequency) error {
	return errors.New("ft232h: PWM is not supported")
}

func (p *OutputPin) String() string   { return p.Name() }
func (p *OutputPin) Name() string     { return fmt.Sprintf("AD%d", p.idx) }
func (p *OutputPin) Number() int      { return int(p.idx) }
func (p *OutputPin) Function() string { return "Out" }

// Halt implements conn.Resource. The pin keeps its level.
func (p *OutputPin) Halt() error { return nil }

var _ gpio.PinOut = (*OutputPin)(nil)
