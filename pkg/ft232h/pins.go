package ft232h

// NumPins is the number of AD bus pins.
const NumPins = 8

// AD bus pin indices.
const (
	AD0 uint8 = iota
	AD1
	AD2
	AD3
	AD4
	AD5
	AD6
	AD7
)

// Serial bus pin masks; SPI and I2C share AD0-AD2.
const (
	pinSCK  = 1 << AD0
	pinMOSI = 1 << AD1
	pinMISO = 1 << AD2

	pinSCL  = 1 << AD0
	pinSDAO = 1 << AD1
	pinSDAI = 1 << AD2
)

// PinUse records what a pin was claimed for.
type PinUse uint8

const (
	pinFree PinUse = iota
	PinUseI2C
	PinUseSPI
	PinUseOutput
)

func (u PinUse) String() string {
	switch u {
	case PinUseI2C:
		return "I2C"
	case PinUseSPI:
		return "SPI"
	case PinUseOutput:
		return "GPIO"
	default:
		return "free"
	}
}

type pinTable [NumPins]PinUse

// allocate claims every pin in idxs for purpose, or none of them.
func (t *pinTable) allocate(purpose PinUse, idxs ...uint8) *PreconditionError {
	for _, idx := range idxs {
		if idx >= NumPins {
			return &PreconditionError{Kind: PinOutOfRange, Pin: idx, Requested: purpose}
		}
		if cur := t[idx]; cur != pinFree {
			return &PreconditionError{Kind: PinConflict, Pin: idx, Requested: purpose, Current: cur}
		}
	}
	for _, idx := range idxs {
		t[idx] = purpose
	}
	return nil
}

func (t *pinTable) owner(idx uint8) (PinUse, bool) {
	if idx >= NumPins || t[idx] == pinFree {
		return pinFree, false
	}
	return t[idx], true
}
