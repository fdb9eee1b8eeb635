package script

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/OpenTraceLab/OpenTraceFTDI/pkg/ft232h"
)

// StepKind identifies what a Step does.
type StepKind uint8

const (
	StepGPIO StepKind = iota
	StepSPIWrite
	StepSPIXfer
	StepSPIMode
	StepI2C
	StepDelay
)

// Step is a validated statement.
type Step struct {
	Pos   lexer.Position
	Kind  StepKind
	Pin   uint8
	High  bool
	Addr  uint8
	Data  []byte
	Read  int
	Delay time.Duration
}

// Program is a compiled script. Its pin usage is known before it runs.
type Program struct {
	Steps   []Step
	SPI     bool
	I2C     bool
	Outputs []uint8
}

// Compile checks a parsed script and resolves its operands. A script may use
// SPI or I2C but not both, and may not drive AD0-AD2 as outputs while a bus
// is in use.
func Compile(f *File) (*Program, error) {
	prog := &Program{}
	var outputs [ft232h.NumPins]bool
	var busPos, gpioPos *lexer.Position

	for _, stmt := range f.Stmts {
		step := Step{Pos: stmt.Pos}
		switch {
		case stmt.GPIO != nil:
			pin, err := parsePin(stmt.GPIO.Pin)
			if err != nil {
				return nil, posError(stmt.Pos, err)
			}
			step.Kind = StepGPIO
			step.Pin = pin
			step.High = stmt.GPIO.Level == "high"
			if !outputs[pin] {
				outputs[pin] = true
				prog.Outputs = append(prog.Outputs, pin)
			}
			if pin <= ft232h.AD2 && gpioPos == nil {
				gpioPos = &stmt.Pos
			}

		case stmt.SPI != nil:
			if err := compileSPI(stmt.SPI, &step); err != nil {
				return nil, posError(stmt.Pos, err)
			}
			prog.SPI = true
			if busPos == nil {
				busPos = &stmt.Pos
			}

		case stmt.I2C != nil:
			if err := compileI2C(stmt.I2C, &step); err != nil {
				return nil, posError(stmt.Pos, err)
			}
			prog.I2C = true
			if busPos == nil {
				busPos = &stmt.Pos
			}

		case stmt.Delay != nil:
			d, err := time.ParseDuration(strings.ReplaceAll(stmt.Delay.Duration, "µ", "u"))
			if err != nil {
				return nil, posError(stmt.Pos, err)
			}
			step.Kind = StepDelay
			step.Delay = d
		}
		prog.Steps = append(prog.Steps, step)
	}

	if prog.SPI && prog.I2C {
		return nil, posError(*busPos, fmt.Errorf("spi and i2c share AD0-AD2 and cannot be used in one script"))
	}
	if busPos != nil && gpioPos != nil {
		return nil, posError(*gpioPos, fmt.Errorf("AD0-AD2 are reserved for the serial bus"))
	}
	return prog, nil
}

// CompileString parses and compiles src.
func CompileString(src string) (*Program, error) {
	p, err := NewParser()
	if err != nil {
		return nil, err
	}
	f, err := p.ParseString(src)
	if err != nil {
		return nil, err
	}
	return Compile(f)
}

func compileSPI(s *SPIStmt, step *Step) error {
	if s.Op == "mode" {
		// modes 1 and 3 are not supported
		if len(s.Data) != 1 || (s.Data[0] != "0" && s.Data[0] != "2") {
			return fmt.Errorf("spi mode must be 0 or 2")
		}
		step.Kind = StepSPIMode
		step.High = s.Data[0] == "2"
		return nil
	}
	data, err := parseBytes(s.Data)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("spi %s needs at least one byte", s.Op)
	}
	step.Kind = StepSPIWrite
	if s.Op == "xfer" {
		step.Kind = StepSPIXfer
	}
	step.Data = data
	return nil
}

func compileI2C(s *I2CStmt, step *Step) error {
	addr, err := strconv.ParseUint(s.Addr, 0, 8)
	if err != nil || addr > 0x7F {
		return fmt.Errorf("invalid 7-bit address %s", s.Addr)
	}
	step.Kind = StepI2C
	step.Addr = uint8(addr)

	switch s.Op {
	case "read":
		if len(s.Data) != 1 || s.Count != nil {
			return fmt.Errorf("i2c read takes a byte count")
		}
		n, err := strconv.ParseUint(s.Data[0], 0, 16)
		if err != nil || n == 0 {
			return fmt.Errorf("invalid read count %s", s.Data[0])
		}
		step.Read = int(n)
		return nil
	case "write":
		if s.Count != nil {
			return fmt.Errorf("i2c write takes no read count")
		}
	case "xfer":
		if s.Count == nil || *s.Count <= 0 {
			return fmt.Errorf("i2c xfer needs a read count after ':'")
		}
		step.Read = *s.Count
	}
	if step.Data, err = parseBytes(s.Data); err != nil {
		return err
	}
	if len(step.Data) == 0 {
		return fmt.Errorf("i2c %s needs at least one byte", s.Op)
	}
	return nil
}

func parsePin(name string) (uint8, error) {
	upper := strings.ToUpper(name)
	if len(upper) == 3 && strings.HasPrefix(upper, "AD") && upper[2] >= '0' && upper[2] <= '7' {
		return upper[2] - '0', nil
	}
	return 0, fmt.Errorf("unknown pin %q, want AD0-AD7", name)
}

func parseBytes(fields []string) ([]byte, error) {
	data := make([]byte, 0, len(fields))
	for _, s := range fields {
		v, err := strconv.ParseUint(s, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid byte %s", s)
		}
		data = append(data, byte(v))
	}
	return data, nil
}

func posError(pos lexer.Position, err error) error {
	return fmt.Errorf("%s: %w", pos, err)
}
