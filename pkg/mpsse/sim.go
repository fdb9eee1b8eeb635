package mpsse

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/physic"
)

// ReadHook supplies the bytes returned by a clock-in opcode. out holds the
// data clocked out by the same opcode, or nil for pure reads.
type ReadHook func(op byte, out []byte, n int) ([]byte, error)

// Sim is an in-memory Driver. It executes GPIO opcodes against a virtual AD
// bus, echoes full duplex transfers, and answers bit reads with zero so that
// I2C transactions see an ACK.
type Sim struct {
	InfoData DeviceInfo

	// Inputs is the level seen on pins configured as inputs.
	Inputs  byte
	// InitErr is returned by Initialize when set.
	InitErr error
	// OnExec runs before a command is interpreted; an error aborts it.
	OnExec  func(cmd []byte) error
	OnRead  ReadHook

	mu         sync.Mutex
	settings   *Settings
	inits      int
	clock      physic.Frequency
	value      byte
	direction  byte
	threePhase bool
	clockDiv5  bool
	commands   [][]byte
	closed     bool
}

// NewSim returns a simulator reporting an FT232H identity.
func NewSim() *Sim {
	return &Sim{InfoData: DeviceInfo{
		Type:         TypeName(ProductIDFT232H),
		VendorID:     VendorIDFTDI,
		ProductID:    ProductIDFT232H,
		SerialNumber: "SIM00001",
		Description:  "Simulated FT232H",
	}}
}

func (s *Sim) Info() DeviceInfo {
	return s.InfoData
}

func (s *Sim) Initialize(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InitErr != nil {
		return s.InitErr
	}
	cp := settings
	s.settings = &cp
	s.inits++
	s.clock = settings.ClockFrequency
	s.value = 0
	s.direction = settings.Mask
	return nil
}

// Settings returns the configuration last passed to Initialize.
func (s *Sim) Settings() (Settings, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		return Settings{}, false
	}
	return *s.settings, true
}

// InitCount reports how many times Initialize succeeded.
func (s *Sim) InitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inits
}

// Clock returns the current clock frequency.
func (s *Sim) Clock() physic.Frequency {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// GPIO returns the AD bus value and direction bytes.
func (s *Sim) GPIO() (value, direction byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.direction
}

// ThreePhase reports whether 3-phase clocking is enabled.
func (s *Sim) ThreePhase() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threePhase
}

// Commands returns a copy of every executed command buffer.
func (s *Sim) Commands() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.commands))
	for i, c := range s.commands {
		out[i] = append([]byte(nil), c...)
	}
	return out
}

// Closed reports whether Close was called.
func (s *Sim) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Sim) SetClock(f physic.Frequency) error {
	_, err := s.Exec(NewCommand().SetClock(f))
	return err
}

func (s *Sim) SetGPIOLower(value, direction byte) error {
	_, err := s.Exec(NewCommand().SetGPIOLower(value, direction))
	return err
}

func (s *Sim) GPIOLower() (byte, error) {
	resp, err := s.Exec(NewCommand().GPIOLower().SendImmediate())
	if err != nil {
		return 0, err
	}
	return resp[0], nil
}

func (s *Sim) Exec(cmd *Command) ([]byte, error) {
	if err := cmd.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("sim: device closed")
	}
	buf := cmd.Bytes()
	if s.OnExec != nil {
		if err := s.OnExec(buf); err != nil {
			return nil, err
		}
	}
	s.commands = append(s.commands, append([]byte(nil), buf...))

	resp, err := s.interpret(buf)
	if err != nil {
		return nil, err
	}
	if len(resp) != cmd.ReadLen() {
		return nil, fmt.Errorf("sim: produced %d response bytes, command expects %d", len(resp), cmd.ReadLen())
	}
	return resp, nil
}

func (s *Sim) interpret(buf []byte) ([]byte, error) {
	var resp []byte
	need := func(n int) error {
		if len(buf) < n {
			return fmt.Errorf("sim: truncated command 0x%02X", buf[0])
		}
		return nil
	}
	for len(buf) > 0 {
		op := buf[0]
		switch op {
		case OpSetDataBitsLow:
			if err := need(3); err != nil {
				return nil, err
			}
			s.value, s.direction = buf[1], buf[2]
			buf = buf[3:]
		case OpSetDataBitsHigh:
			if err := need(3); err != nil {
				return nil, err
			}
			buf = buf[3:]
		case OpReadDataBitsLow:
			resp = append(resp, s.value&s.direction|s.Inputs&^s.direction)
			buf = buf[1:]
		case OpReadDataBitsHigh:
			resp = append(resp, 0)
			buf = buf[1:]
		case OpClockBytesOutPos, OpClockBytesOutNeg:
			if err := need(3); err != nil {
				return nil, err
			}
			n := length16(buf[1], buf[2])
			if err := need(3 + n); err != nil {
				return nil, err
			}
			buf = buf[3+n:]
		case OpClockBytesInPos, OpClockBytesInNeg:
			if err := need(3); err != nil {
				return nil, err
			}
			n := length16(buf[1], buf[2])
			in, err := s.read(op, nil, n)
			if err != nil {
				return nil, err
			}
			resp = append(resp, in...)
			buf = buf[3:]
		case OpClockBytesInPosOut, OpClockBytesInNegOut:
			if err := need(3); err != nil {
				return nil, err
			}
			n := length16(buf[1], buf[2])
			if err := need(3 + n); err != nil {
				return nil, err
			}
			in, err := s.read(op, buf[3:3+n], n)
			if err != nil {
				return nil, err
			}
			resp = append(resp, in...)
			buf = buf[3+n:]
		case OpClockBitsOutPos, OpClockBitsOutNeg:
			if err := need(3); err != nil {
				return nil, err
			}
			buf = buf[3:]
		case OpClockBitsInPos, OpClockBitsInNeg:
			if err := need(2); err != nil {
				return nil, err
			}
			in, err := s.read(op, nil, 1)
			if err != nil {
				return nil, err
			}
			resp = append(resp, in...)
			buf = buf[2:]
		case OpSetClockDivisor:
			if err := need(3); err != nil {
				return nil, err
			}
			div := uint16(buf[1]) | uint16(buf[2])<<8
			s.clock = ActualClock(div, s.clockDiv5)
			buf = buf[3:]
		case OpEnableClockDiv5, OpDisableClockDiv5:
			s.clockDiv5 = op == OpEnableClockDiv5
			buf = buf[1:]
		case OpEnable3Phase, OpDisable3Phase:
			s.threePhase = op == OpEnable3Phase
			buf = buf[1:]
		case OpLoopbackEnable, OpLoopbackDisable, OpSendImmediate, OpDisableAdaptive:
			buf = buf[1:]
		default:
			resp = append(resp, BadCommand, op)
			buf = buf[1:]
		}
	}
	return resp, nil
}

func length16(lo, hi byte) int {
	return (int(lo) | int(hi)<<8) + 1
}

func (s *Sim) read(op byte, out []byte, n int) ([]byte, error) {
	if s.OnRead != nil {
		in, err := s.OnRead(op, out, n)
		if err != nil {
			return nil, err
		}
		if len(in) != n {
			return nil, fmt.Errorf("sim: read hook returned %d bytes, want %d", len(in), n)
		}
		return in, nil
	}
	in := make([]byte, n)
	copy(in, out)
	return in, nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Driver = (*Sim)(nil)
