package ft232h

import (
	"bytes"
	"errors"
	"testing"

	"periph.io/x/conn/v3/physic"

	"github.com/OpenTraceLab/OpenTraceFTDI/pkg/mpsse"
)

func openI2C(t *testing.T) (*I2C, *Initialized, *mpsse.Sim) {
	t.Helper()
	hal, sim := newHAL(t)
	bus, err := hal.I2C()
	if err != nil {
		t.Fatalf("I2C returned error: %v", err)
	}
	return bus, hal, sim
}

// bitReads answers successive bit reads from seq, then zeros.
func bitReads(seq ...byte) mpsse.ReadHook {
	return func(op byte, out []byte, n int) ([]byte, error) {
		in := make([]byte, n)
		if op == mpsse.OpClockBitsInPos && len(seq) > 0 {
			in[0], seq = seq[0], seq[1:]
		}
		return in, nil
	}
}

func TestI2CAcquire(t *testing.T) {
	_, hal, sim := openI2C(t)
	value, dir := sim.GPIO()
	if value != 0x03 || dir != 0x03 {
		t.Fatalf("GPIO = 0x%02X/0x%02X, want 0x03/0x03", value, dir)
	}
	if !sim.ThreePhase() {
		t.Fatalf("three phase clocking not enabled")
	}
	for _, idx := range []uint8{AD0, AD1, AD2} {
		if use, _ := hal.Owner(idx); use != PinUseI2C {
			t.Fatalf("pin %d owner = %s, want I2C", idx, use)
		}
	}
}

func TestI2CWriteSequence(t *testing.T) {
	bus, _, sim := openI2C(t)
	before := len(sim.Commands())
	if err := bus.Write(0x50, []byte{0xAA}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	want := [][]byte{
		{
			0x80, 0x03, 0x03, 0x80, 0x01, 0x03, 0x80, 0x00, 0x03, // start
			0x80, 0x00, 0x03, 0x13, 0x07, 0xA0, 0x80, 0x00, 0x01, 0x22, 0x00,
			0x87,
		},
		{0x80, 0x00, 0x03, 0x13, 0x07, 0xAA, 0x80, 0x00, 0x01, 0x22, 0x00, 0x87},
		{0x80, 0x00, 0x03, 0x80, 0x01, 0x03, 0x80, 0x03, 0x03}, // stop
	}
	got := sim.Commands()[before:]
	if len(got) != len(want) {
		t.Fatalf("executed %d commands, want %d", len(got), len(want))
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Fatalf("command %d = % X, want % X", i, got[i], want[i])
		}
	}
	if value, dir := sim.GPIO(); value != 0x03 || dir != 0x03 {
		t.Fatalf("bus not idle after stop: 0x%02X/0x%02X", value, dir)
	}
}

func TestI2CRead(t *testing.T) {
	bus, _, sim := openI2C(t)
	sim.OnRead = bitReads(0x00, 0x5A, 0xA5)

	r := make([]byte, 2)
	if err := bus.Read(0x50, r); err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if !bytes.Equal(r, []byte{0x5A, 0xA5}) {
		t.Fatalf("Read = % X, want 5A A5", r)
	}

	cmds := sim.Commands()
	read := cmds[len(cmds)-2]
	want := []byte{
		0x80, 0x00, 0x01, 0x22, 0x07, 0x80, 0x00, 0x03, 0x13, 0x00, 0x00, // ACK
		0x80, 0x00, 0x01, 0x22, 0x07, 0x80, 0x00, 0x03, 0x13, 0x00, 0x80, // NACK
		0x87,
	}
	if !bytes.Equal(read, want) {
		t.Fatalf("read command = % X, want % X", read, want)
	}
}

func TestI2CWriteReadRepeatedStart(t *testing.T) {
	bus, _, sim := openI2C(t)
	before := len(sim.Commands())
	r := make([]byte, 1)
	if err := bus.WriteRead(0x68, []byte{0x75}, r); err != nil {
		t.Fatalf("WriteRead returned error: %v", err)
	}
	cmds := sim.Commands()[before:]
	if len(cmds) != 5 {
		t.Fatalf("executed %d commands, want 5", len(cmds))
	}
	if !bytes.Equal(cmds[2][:3], []byte{0x80, 0x02, 0x03}) {
		t.Fatalf("read phase starts with % X, want SDA released before SCL", cmds[2][:3])
	}
	if addr := cmds[2][17]; addr != 0x68<<1|1 {
		t.Fatalf("read address byte = 0x%02X, want 0x%02X", addr, 0x68<<1|1)
	}
}

func TestI2CNoAck(t *testing.T) {
	tests := []struct {
		name  string
		reads []byte
		run   func(b *I2C) error
	}{
		{name: "address", reads: []byte{0x01}, run: func(b *I2C) error { return b.Write(0x20, []byte{1}) }},
		{name: "data", reads: []byte{0x00, 0x00, 0x01}, run: func(b *I2C) error { return b.Write(0x20, []byte{1, 2, 3}) }},
		{name: "read address", reads: []byte{0xFF}, run: func(b *I2C) error { return b.Read(0x20, make([]byte, 1)) }},
		{name: "probe", reads: []byte{0x01}, run: func(b *I2C) error { return b.WriteRead(0x20, nil, nil) }},
	}

	stop := []byte{0x80, 0x00, 0x03, 0x80, 0x01, 0x03, 0x80, 0x03, 0x03}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus, _, sim := openI2C(t)
			sim.OnRead = bitReads(tt.reads...)
			if err := tt.run(bus); !errors.Is(err, ErrNoAck) {
				t.Fatalf("error = %v, want ErrNoAck", err)
			}
			if got := lastCommand(t, sim); !bytes.Equal(got, stop) {
				t.Fatalf("last command = % X, want stop % X", got, stop)
			}
		})
	}
}

func TestI2CProbe(t *testing.T) {
	bus, _, sim := openI2C(t)
	before := len(sim.Commands())
	if err := bus.WriteRead(0x3C, nil, nil); err != nil {
		t.Fatalf("probe returned error: %v", err)
	}
	if n := len(sim.Commands()) - before; n != 2 {
		t.Fatalf("executed %d commands, want address and stop", n)
	}
}

func TestI2CAddressRange(t *testing.T) {
	bus, _, sim := openI2C(t)
	before := len(sim.Commands())
	if err := bus.Write(0x80, []byte{0}); err == nil {
		t.Fatalf("Write to 0x80 succeeded")
	}
	if err := bus.Tx(0x3FF, []byte{0}, nil); err == nil {
		t.Fatalf("Tx to 10-bit address succeeded")
	}
	if len(sim.Commands()) != before {
		t.Fatalf("rejected transactions reached the device")
	}
	if err := bus.Tx(0x7F, []byte{0}, nil); err != nil {
		t.Fatalf("Tx to 0x7F returned error: %v", err)
	}
}

func TestI2CSetSpeed(t *testing.T) {
	bus, _, sim := openI2C(t)
	if err := bus.SetSpeed(400 * physic.KiloHertz); err != nil {
		t.Fatalf("SetSpeed returned error: %v", err)
	}
	if sim.Clock() != 400*physic.KiloHertz {
		t.Fatalf("clock = %s, want 400kHz", sim.Clock())
	}
}

// A sensor board: I2C on AD0-AD2 plus two discrete outputs.
func TestI2CWithOutputs(t *testing.T) {
	bus, hal, sim := openI2C(t)
	led, err := hal.Output(AD3)
	if err != nil {
		t.Fatalf("Output(AD3) returned error: %v", err)
	}
	rst, err := hal.Output(AD4)
	if err != nil {
		t.Fatalf("Output(AD4) returned error: %v", err)
	}
	if _, dir := sim.GPIO(); dir != 0x1B {
		t.Fatalf("direction = 0x%02X, want 0x1B", dir)
	}
	if err := rst.SetHigh(); err != nil {
		t.Fatalf("SetHigh returned error: %v", err)
	}
	if err := bus.Write(0x40, []byte{0x01}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if err := led.SetHigh(); err != nil {
		t.Fatalf("SetHigh returned error: %v", err)
	}
	if value, _ := sim.GPIO(); value != 0x1B {
		t.Fatalf("value = 0x%02X, want 0x1B", value)
	}
}
