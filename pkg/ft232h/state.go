package ft232h

import (
	"sync"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceFTDI/pkg/mpsse"
)

// deviceState is the single mutable record shared by all views.
type deviceState struct {
	drv       mpsse.Driver
	direction byte
	value     byte
	pins      pinTable
}

func (s *deviceState) writeGPIO(value, direction byte) error {
	if err := s.drv.SetGPIOLower(value, direction); err != nil {
		return err
	}
	s.value, s.direction = value, direction
	return nil
}

// exclusive guards deviceState. A panic inside an access poisons it.
type exclusive struct {
	mu       sync.Mutex
	state    deviceState
	poisoned bool
	closed   bool
	logger   *zap.Logger
}

func newExclusive(logger *zap.Logger, drv mpsse.Driver) *exclusive {
	return &exclusive{
		state:  deviceState{drv: drv},
		logger: logger,
	}
}

// withExclusiveAccess runs fn while holding the device lock.
func (e *exclusive) withExclusiveAccess(fn func(s *deviceState) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.poisoned {
		panic(&PreconditionError{Kind: StatePoisoned})
	}
	if e.closed {
		return ErrClosed
	}
	completed := false
	defer func() {
		if !completed {
			e.poisoned = true
		}
	}()
	err := fn(&e.state)
	completed = true
	if err != nil {
		e.logger.Debug("device operation failed", zap.Error(err))
	}
	return err
}

// claim allocates pins and runs configure under a single lock. Conflicts
// panic after the lock is released so the state is not poisoned.
func (e *exclusive) claim(purpose PinUse, idxs []uint8, configure func(s *deviceState) error) error {
	var conflict *PreconditionError
	err := e.withExclusiveAccess(func(s *deviceState) error {
		if conflict = s.pins.allocate(purpose, idxs...); conflict != nil {
			return nil
		}
		return configure(s)
	})
	if conflict != nil {
		e.logger.Error("pin allocation rejected", zap.Stringer("reason", conflict))
		panic(conflict)
	}
	if err != nil {
		return err
	}
	e.logger.Debug("pins allocated", zap.Stringer("use", purpose), zap.Uint8s("pins", idxs))
	return nil
}

// owner reads the ledger without touching the device, so it also works on a
// closed device.
func (e *exclusive) owner(idx uint8) (PinUse, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.poisoned {
		panic(&PreconditionError{Kind: StatePoisoned})
	}
	return e.state.pins.owner(idx)
}

func (e *exclusive) close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.state.drv.Close()
}
