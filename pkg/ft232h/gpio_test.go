package ft232h

import (
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

func TestOutputPin(t *testing.T) {
	hal, sim := newHAL(t)
	pin, err := hal.Output(AD6)
	if err != nil {
		t.Fatalf("Output returned error: %v", err)
	}
	if value, dir := sim.GPIO(); dir != 0x40 || value != 0x00 {
		t.Fatalf("GPIO = 0x%02X/0x%02X, want low output on AD6", value, dir)
	}
	if pin.Name() != "AD6" || pin.Number() != 6 || pin.String() != "AD6" {
		t.Fatalf("pin identity = %s/%d", pin.Name(), pin.Number())
	}

	steps := []struct {
		set  func() error
		high bool
	}{
		{pin.SetHigh, true},
		{pin.SetLow, false},
		{func() error { return pin.Out(gpio.High) }, true},
		{func() error { return pin.Out(gpio.Low) }, false},
	}
	for i, step := range steps {
		if err := step.set(); err != nil {
			t.Fatalf("step %d returned error: %v", i, err)
		}
		high, err := pin.IsSetHigh()
		if err != nil || high != step.high {
			t.Fatalf("step %d: IsSetHigh = %v, %v, want %v", i, high, err, step.high)
		}
		level, err := pin.Sample()
		if err != nil || bool(level) != step.high {
			t.Fatalf("step %d: Sample = %v, %v, want %v", i, level, err, step.high)
		}
	}

	if err := pin.PWM(gpio.DutyHalf, physic.KiloHertz); err == nil {
		t.Fatalf("PWM succeeded")
	}
}

func TestOutputPinsShareValue(t *testing.T) {
	hal, sim := newHAL(t)
	a, err := hal.Output(AD3)
	if err != nil {
		t.Fatalf("Output(AD3) returned error: %v", err)
	}
	b, err := hal.Output(AD7)
	if err != nil {
		t.Fatalf("Output(AD7) returned error: %v", err)
	}
	if err := a.SetHigh(); err != nil {
		t.Fatalf("SetHigh returned error: %v", err)
	}
	if err := b.SetHigh(); err != nil {
		t.Fatalf("SetHigh returned error: %v", err)
	}
	if err := a.SetLow(); err != nil {
		t.Fatalf("SetLow returned error: %v", err)
	}
	if value, dir := sim.GPIO(); value != 0x80 || dir != 0x88 {
		t.Fatalf("GPIO = 0x%02X/0x%02X, want 0x80/0x88", value, dir)
	}
}

func TestDelay(t *testing.T) {
	hal, _ := newHAL(t)
	d := hal.Delay()

	start := time.Now()
	d.DelayMs(2)
	d.DelayUs(500)
	d.Sleep(time.Millisecond)
	if elapsed := time.Since(start); elapsed < 3500*time.Microsecond {
		t.Fatalf("delays returned after %s", elapsed)
	}
	for idx := uint8(0); idx < NumPins; idx++ {
		if _, ok := hal.Owner(idx); ok {
			t.Fatalf("Delay claimed pin %d", idx)
		}
	}
}
