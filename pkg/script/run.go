package script

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/OpenTraceLab/OpenTraceFTDI/pkg/ft232h"
)

// Run acquires the views prog needs from hal and executes its steps in
// order. Data read from a bus is written to w, one line per step. Run stops
// between steps once ctx is done.
//
// The views are claimed from hal for the rest of its lifetime, so a device
// can run only one program that uses a given pin.
func Run(ctx context.Context, hal *ft232h.Initialized, prog *Program, w io.Writer) error {
	var (
		spi  *ft232h.SPI
		bus  *ft232h.I2C
		pins = make(map[uint8]*ft232h.OutputPin, len(prog.Outputs))
		err  error
	)
	if prog.SPI {
		if spi, err = hal.SPI(); err != nil {
			return fmt.Errorf("acquire spi: %w", err)
		}
	}
	if prog.I2C {
		if bus, err = hal.I2C(); err != nil {
			return fmt.Errorf("acquire i2c: %w", err)
		}
	}
	for _, idx := range prog.Outputs {
		if pins[idx], err = hal.Output(idx); err != nil {
			return fmt.Errorf("acquire AD%d: %w", idx, err)
		}
	}

	for _, step := range prog.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := runStep(ctx, step, spi, bus, pins, w); err != nil {
			return fmt.Errorf("%s: %w", step.Pos, err)
		}
	}
	return nil
}

func runStep(ctx context.Context, step Step, spi *ft232h.SPI, bus *ft232h.I2C, pins map[uint8]*ft232h.OutputPin, w io.Writer) error {
	switch step.Kind {
	case StepGPIO:
		if step.High {
			return pins[step.Pin].SetHigh()
		}
		return pins[step.Pin].SetLow()

	case StepSPIMode:
		return spi.SetClockPolarity(step.High)

	case StepSPIWrite:
		return spi.Write(step.Data)

	case StepSPIXfer:
		buf := append([]byte(nil), step.Data...)
		if err := spi.Transfer(buf); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "spi: % X\n", buf)
		return err

	case StepI2C:
		var r []byte
		if step.Read > 0 {
			r = make([]byte, step.Read)
		}
		if err := bus.WriteRead(step.Addr, step.Data, r); err != nil {
			return err
		}
		if len(r) == 0 {
			return nil
		}
		_, err := fmt.Fprintf(w, "i2c 0x%02X: % X\n", step.Addr, r)
		return err

	case StepDelay:
		timer := time.NewTimer(step.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
	return fmt.Errorf("unknown step kind %d", step.Kind)
}
