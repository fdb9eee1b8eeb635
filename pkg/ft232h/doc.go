// Package ft232h shares a single FT232H between SPI, I2C and GPIO views.
//
// The device goes through two phases, each its own type. Open, OpenBySerial,
// OpenByDescription and FromDriver return an *Uninitialized device, which can
// only be initialized or closed. Init and InitDefault consume it and return an
// *Initialized device, the only type that hands out peripheral views:
//
//	dev, err := ft232h.Open(logger)
//	if err != nil {
//		return err
//	}
//	hal, err := dev.InitDefault()
//	if err != nil {
//		return err
//	}
//	defer hal.Close()
//
//	spi, err := hal.SPI()       // claims AD0-AD2
//	cs, err := hal.Output(ft232h.AD3)
//
// Every view locks the same device state for the duration of each operation,
// so views may be used from different goroutines.
//
// # Pin ownership
//
// Each of the eight AD pins is claimed at most once for the lifetime of the
// device; dropping a view does not release its pins. Claiming a pin twice,
// or a pin outside AD0-AD7, is a programming error and panics with a
// *PreconditionError. Transport failures (timeouts, USB errors) are returned
// as ordinary errors and may be retried by the caller.
package ft232h
