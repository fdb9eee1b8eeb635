package ft232h

import (
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"

	"github.com/OpenTraceLab/OpenTraceFTDI/pkg/mpsse"
)

// DefaultSettings returns the settings used by InitDefault.
func DefaultSettings() mpsse.Settings {
	return mpsse.Settings{
		Reset:          true,
		InTransferSize: 4096,
		ReadTimeout:    time.Second,
		WriteTimeout:   time.Second,
		LatencyTimer:   16 * time.Millisecond,
		ClockFrequency: 100 * physic.KiloHertz,
	}
}

// Uninitialized is an opened device that has not been configured for MPSSE.
type Uninitialized struct {
	mu   sync.Mutex
	ex   *exclusive
	info mpsse.DeviceInfo
}

// Open opens the first FT232H on the bus. A nil logger disables logging.
func Open(logger *zap.Logger) (*Uninitialized, error) {
	logger = orNop(logger)
	drv, err := mpsse.Open(logger)
	if err != nil {
		return nil, err
	}
	return FromDriver(logger, drv), nil
}

// OpenBySerial opens the FT232H with the given serial number.
func OpenBySerial(logger *zap.Logger, serial string) (*Uninitialized, error) {
	logger = orNop(logger)
	drv, err := mpsse.OpenBySerial(logger, serial)
	if err != nil {
		return nil, err
	}
	return FromDriver(logger, drv), nil
}

// OpenByDescription opens the FT232H with the given product description.
func OpenByDescription(logger *zap.Logger, description string) (*Uninitialized, error) {
	logger = orNop(logger)
	drv, err := mpsse.OpenByDescription(logger, description)
	if err != nil {
		return nil, err
	}
	return FromDriver(logger, drv), nil
}

// FromDriver wraps an already opened driver. The returned device owns drv.
func FromDriver(logger *zap.Logger, drv mpsse.Driver) *Uninitialized {
	logger = orNop(logger)
	info := drv.Info()
	logger = logger.With(zap.String("device", info.Label()))
	return &Uninitialized{ex: newExclusive(logger, drv), info: info}
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// Info returns the identity of the opened device.
func (u *Uninitialized) Info() mpsse.DeviceInfo { return u.info }

func (u *Uninitialized) take() *exclusive {
	u.mu.Lock()
	defer u.mu.Unlock()
	ex := u.ex
	if ex == nil {
		panic(&PreconditionError{Kind: AlreadyInitialized})
	}
	u.ex = nil
	return ex
}

// Init configures the device for MPSSE and returns its initialized form.
// The receiver cannot be used afterwards. The direction mask in settings is
// replaced by the device's current direction mask, all inputs at this point.
// If configuration fails the device is closed.
func (u *Uninitialized) Init(settings mpsse.Settings) (*Initialized, error) {
	if settings.ClockFrequency == 0 {
		panic(&PreconditionError{Kind: MissingClockFrequency})
	}
	ex := u.take()
	err := ex.withExclusiveAccess(func(s *deviceState) error {
		settings.Mask = s.direction
		return s.drv.Initialize(settings)
	})
	if err != nil {
		ex.logger.Warn("initialization failed", zap.Error(err))
		return nil, multierr.Append(err, ex.close())
	}
	ex.logger.Info("device initialized",
		zap.Stringer("clock", settings.ClockFrequency),
		zap.Duration("latency", settings.LatencyTimer))
	return &Initialized{ex: ex, info: u.info}, nil
}

// InitDefault is Init(DefaultSettings()).
func (u *Uninitialized) InitDefault() (*Initialized, error) {
	return u.Init(DefaultSettings())
}

// Close releases the device without initializing it.
func (u *Uninitialized) Close() error {
	u.mu.Lock()
	ex := u.ex
	u.ex = nil
	u.mu.Unlock()
	if ex == nil {
		return nil
	}
	return ex.close()
}

// Initialized is a configured device. Peripheral views are acquired from it.
type Initialized struct {
	ex   *exclusive
	info mpsse.DeviceInfo
}

// Info returns the identity of the device.
func (h *Initialized) Info() mpsse.DeviceInfo { return h.info }

// SPI claims AD0 (SCK), AD1 (MOSI) and AD2 (MISO) and returns a mode 0
// SPI view.
func (h *Initialized) SPI() (*SPI, error) {
	return newSPI(h.ex)
}

// I2C claims AD0 (SCL), AD1 (SDA out) and AD2 (SDA in) and returns an I2C
// view. AD1 and AD2 must be wired together.
func (h *Initialized) I2C() (*I2C, error) {
	return newI2C(h.ex)
}

// Output claims the given AD pin as a push-pull output driven low.
func (h *Initialized) Output(idx uint8) (*OutputPin, error) {
	return newOutputPin(h.ex, idx)
}

// Delay returns a blocking delay provider. It claims no pins.
func (h *Initialized) Delay() Delay { return Delay{} }

// Owner reports what pin idx was claimed for, if anything. Claims outlive
// Close.
func (h *Initialized) Owner(idx uint8) (PinUse, bool) {
	return h.ex.owner(idx)
}

// Close releases the device. Views return ErrClosed afterwards.
func (h *Initialized) Close() error {
	err := h.ex.close()
	h.ex.logger.Debug("device closed", zap.Error(err))
	return err
}
