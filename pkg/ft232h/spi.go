package ft232h

import (
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/OpenTraceLab/OpenTraceFTDI/pkg/mpsse"
)

// SPI is a full duplex SPI view over AD0-AD2. It does not drive a chip
// select; claim an Output for that.
type SPI struct {
	ex *exclusive
}

func newSPI(ex *exclusive) (*SPI, error) {
	err := ex.claim(PinUseSPI, []uint8{AD0, AD1, AD2}, func(s *deviceState) error {
		direction := (s.direction | pinSCK | pinMOSI) &^ pinMISO
		value := s.value &^ (pinSCK | pinMOSI)
		return s.writeGPIO(value, direction)
	})
	if err != nil {
		return nil, err
	}
	return &SPI{ex: ex}, nil
}

// SetClockPolarity selects SPI mode 0 (idle low) or mode 2 (idle high).
func (p *SPI) SetClockPolarity(idleHigh bool) error {
	return p.ex.withExclusiveAccess(func(s *deviceState) error {
		value := s.value &^ pinSCK
		if idleHigh {
			value |= pinSCK
		}
		return s.writeGPIO(value, s.direction)
	})
}

// SetSpeed changes the engine clock, which all views share.
func (p *SPI) SetSpeed(f physic.Frequency) error {
	return p.ex.withExclusiveAccess(func(s *deviceState) error {
		return s.drv.SetClock(f)
	})
}

// Write clocks w out, discarding input.
func (p *SPI) Write(w []byte) error {
	return p.Tx(w, nil)
}

// Transfer clocks buf out and replaces its contents with the bytes read.
func (p *SPI) Transfer(buf []byte) error {
	return p.Tx(buf, buf)
}

// Tx implements spi.Conn. w and r must have the same length when both are
// set; a nil w clocks out zeros.
func (p *SPI) Tx(w, r []byte) error {
	if err := checkPacket(w, r, 8); err != nil {
		return err
	}
	return p.ex.withExclusiveAccess(func(s *deviceState) error {
		return s.spiTx(w, r)
	})
}

// TxPackets implements spi.Conn. KeepCS is ignored.
func (p *SPI) TxPackets(pkts []spi.Packet) error {
	for i := range pkts {
		if err := checkPacket(pkts[i].W, pkts[i].R, pkts[i].BitsPerWord); err != nil {
			return fmt.Errorf("packet %d: %w", i, err)
		}
	}
	return p.ex.withExclusiveAccess(func(s *deviceState) error {
		for i := range pkts {
			if err := s.spiTx(pkts[i].W, pkts[i].R); err != nil {
				return fmt.Errorf("packet %d: %w", i, err)
			}
		}
		return nil
	})
}

// Duplex implements conn.Conn.
func (p *SPI) Duplex() conn.Duplex { return conn.Full }

func (p *SPI) String() string { return "ft232h-spi" }

func checkPacket(w, r []byte, bits uint8) error {
	if bits != 0 && bits != 8 {
		return fmt.Errorf("ft232h: spi: %d bits per word unsupported", bits)
	}
	if len(w) != 0 && len(r) != 0 && len(w) != len(r) {
		return fmt.Errorf("ft232h: spi: write length %d differs from read length %d", len(w), len(r))
	}
	return nil
}

// spiTx runs a transfer in chunks the engine accepts.
func (s *deviceState) spiTx(w, r []byte) error {
	edge := mpsse.EdgeNeg
	if s.value&pinSCK != 0 {
		edge = mpsse.EdgePos
	}
	n := max(len(w), len(r))
	for off := 0; off < n; off += mpsse.MaxTransferBytes {
		end := min(off+mpsse.MaxTransferBytes, n)
		cmd := mpsse.NewCommand()
		switch {
		case len(r) == 0:
			cmd.ClockBytesOut(edge, w[off:end])
		case len(w) == 0:
			cmd.ClockBytes(edge, make([]byte, end-off)).SendImmediate()
		default:
			cmd.ClockBytes(edge, w[off:end]).SendImmediate()
		}
		resp, err := s.drv.Exec(cmd)
		if err != nil {
			return fmt.Errorf("ft232h: spi transfer: %w", err)
		}
		if len(r) != 0 {
			copy(r[off:end], resp)
		}
	}
	return nil
}

var _ spi.Conn = (*SPI)(nil)
