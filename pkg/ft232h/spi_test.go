package ft232h

import (
	"bytes"
	"testing"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/OpenTraceLab/OpenTraceFTDI/pkg/mpsse"
)

func TestSPIAcquire(t *testing.T) {
	hal, sim := newHAL(t)
	if _, err := hal.SPI(); err != nil {
		t.Fatalf("SPI returned error: %v", err)
	}
	value, dir := sim.GPIO()
	if dir != 0x03 {
		t.Fatalf("direction = 0x%02X, want 0x03", dir)
	}
	if value&pinSCK != 0 {
		t.Fatalf("SCK idles high in mode 0")
	}
	for _, idx := range []uint8{AD0, AD1, AD2} {
		if use, ok := hal.Owner(idx); !ok || use != PinUseSPI {
			t.Fatalf("pin %d owner = %s, want SPI", idx, use)
		}
	}
}

func TestSPICommands(t *testing.T) {
	tests := []struct {
		name     string
		idleHigh bool
		run      func(p *SPI) error
		want     []byte
	}{
		{
			name: "write mode 0",
			run:  func(p *SPI) error { return p.Write([]byte{0xA5, 0x5A}) },
			want: []byte{mpsse.OpClockBytesOutNeg, 0x01, 0x00, 0xA5, 0x5A},
		},
		{
			name: "transfer mode 0",
			run:  func(p *SPI) error { return p.Transfer([]byte{1, 2, 3}) },
			want: []byte{mpsse.OpClockBytesInPosOut, 0x02, 0x00, 1, 2, 3, mpsse.OpSendImmediate},
		},
		{
			name:     "write mode 2",
			idleHigh: true,
			run:      func(p *SPI) error { return p.Write([]byte{0xFF}) },
			want:     []byte{mpsse.OpClockBytesOutPos, 0x00, 0x00, 0xFF},
		},
		{
			name:     "transfer mode 2",
			idleHigh: true,
			run:      func(p *SPI) error { return p.Transfer([]byte{0x42}) },
			want:     []byte{mpsse.OpClockBytesInNegOut, 0x00, 0x00, 0x42, mpsse.OpSendImmediate},
		},
		{
			name: "read only clocks zeros",
			run:  func(p *SPI) error { return p.Tx(nil, make([]byte, 2)) },
			want: []byte{mpsse.OpClockBytesInPosOut, 0x01, 0x00, 0x00, 0x00, mpsse.OpSendImmediate},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hal, sim := newHAL(t)
			p, err := hal.SPI()
			if err != nil {
				t.Fatalf("SPI returned error: %v", err)
			}
			if err := p.SetClockPolarity(tt.idleHigh); err != nil {
				t.Fatalf("SetClockPolarity returned error: %v", err)
			}
			if value, _ := sim.GPIO(); (value&pinSCK != 0) != tt.idleHigh {
				t.Fatalf("SCK idle level = %v, want %v", value&pinSCK != 0, tt.idleHigh)
			}
			if err := tt.run(p); err != nil {
				t.Fatalf("transfer returned error: %v", err)
			}
			if got := lastCommand(t, sim); !bytes.Equal(got, tt.want) {
				t.Fatalf("command = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestSPITransferReadsBack(t *testing.T) {
	hal, sim := newHAL(t)
	p, err := hal.SPI()
	if err != nil {
		t.Fatalf("SPI returned error: %v", err)
	}
	sim.OnRead = func(op byte, out []byte, n int) ([]byte, error) {
		in := make([]byte, n)
		for i := range out {
			in[i] = ^out[i]
		}
		return in, nil
	}

	buf := []byte{0x00, 0x0F, 0xF0}
	if err := p.Transfer(buf); err != nil {
		t.Fatalf("Transfer returned error: %v", err)
	}
	if want := []byte{0xFF, 0xF0, 0x0F}; !bytes.Equal(buf, want) {
		t.Fatalf("Transfer buffer = % X, want % X", buf, want)
	}
}

func TestSPIChunksLargeTransfers(t *testing.T) {
	hal, sim := newHAL(t)
	p, err := hal.SPI()
	if err != nil {
		t.Fatalf("SPI returned error: %v", err)
	}
	before := len(sim.Commands())
	if err := p.Write(make([]byte, mpsse.MaxTransferBytes+10)); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	cmds := sim.Commands()[before:]
	if len(cmds) != 2 {
		t.Fatalf("executed %d commands, want 2", len(cmds))
	}
	if cmds[1][1] != 9 || cmds[1][2] != 0 {
		t.Fatalf("second chunk length bytes = % X, want 09 00", cmds[1][1:3])
	}
}

func TestSPIRejectsBadPackets(t *testing.T) {
	hal, sim := newHAL(t)
	p, err := hal.SPI()
	if err != nil {
		t.Fatalf("SPI returned error: %v", err)
	}
	before := len(sim.Commands())

	if err := p.Tx(make([]byte, 2), make([]byte, 3)); err == nil {
		t.Fatalf("Tx with mismatched lengths succeeded")
	}
	if err := p.TxPackets([]spi.Packet{{W: []byte{1}}, {W: []byte{1, 2}, BitsPerWord: 16}}); err == nil {
		t.Fatalf("TxPackets with 16 bit words succeeded")
	}
	if len(sim.Commands()) != before {
		t.Fatalf("rejected transfers reached the device")
	}
}

func TestSPITxPackets(t *testing.T) {
	hal, sim := newHAL(t)
	p, err := hal.SPI()
	if err != nil {
		t.Fatalf("SPI returned error: %v", err)
	}
	r := make([]byte, 2)
	pkts := []spi.Packet{
		{W: []byte{0x9F}},
		{W: []byte{0x01, 0x02}, R: r, BitsPerWord: 8},
	}
	before := len(sim.Commands())
	if err := p.TxPackets(pkts); err != nil {
		t.Fatalf("TxPackets returned error: %v", err)
	}
	if n := len(sim.Commands()) - before; n != 2 {
		t.Fatalf("executed %d commands, want 2", n)
	}
	if !bytes.Equal(r, []byte{0x01, 0x02}) {
		t.Fatalf("read = % X, want loopback 01 02", r)
	}
	if p.Duplex() != conn.Full {
		t.Fatalf("Duplex() = %v, want Full", p.Duplex())
	}
}

func TestSPISetSpeed(t *testing.T) {
	hal, sim := newHAL(t)
	p, err := hal.SPI()
	if err != nil {
		t.Fatalf("SPI returned error: %v", err)
	}
	if err := p.SetSpeed(physic.MegaHertz); err != nil {
		t.Fatalf("SetSpeed returned error: %v", err)
	}
	if sim.Clock() != physic.MegaHertz {
		t.Fatalf("clock = %s, want 1MHz", sim.Clock())
	}
}

// A flash-style exchange: chip select on AD3 framing a SPI transfer.
func TestSPIWithChipSelect(t *testing.T) {
	hal, sim := newHAL(t)
	p, err := hal.SPI()
	if err != nil {
		t.Fatalf("SPI returned error: %v", err)
	}
	cs, err := hal.Output(AD3)
	if err != nil {
		t.Fatalf("Output returned error: %v", err)
	}
	if err := cs.SetHigh(); err != nil {
		t.Fatalf("SetHigh returned error: %v", err)
	}
	if _, dir := sim.GPIO(); dir != 0x0B {
		t.Fatalf("direction = 0x%02X, want 0x0B", dir)
	}

	buf := []byte{0x9F, 0, 0, 0}
	if err := cs.SetLow(); err != nil {
		t.Fatalf("SetLow returned error: %v", err)
	}
	if err := p.Transfer(buf); err != nil {
		t.Fatalf("Transfer returned error: %v", err)
	}
	if err := cs.SetHigh(); err != nil {
		t.Fatalf("SetHigh returned error: %v", err)
	}
	if value, _ := sim.GPIO(); value != 0x08 {
		t.Fatalf("value = 0x%02X, want 0x08", value)
	}
}
