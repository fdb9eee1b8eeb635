package mpsse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"
)

// FTDI vendor control requests.
const (
	requestTypeOut = 0x40

	sioReset          = 0x00
	sioSetFlowCtrl    = 0x02
	sioSetEventChar   = 0x06
	sioSetErrorChar   = 0x07
	sioSetLatency     = 0x09
	sioSetBitMode     = 0x0B
	sioResetSIO       = 0
	sioResetPurgeRX   = 1
	sioResetPurgeTX   = 2
	sioRTSCTSHS       = 0x0100
	bitModeReset      = 0x00
	bitModeMPSSE      = 0x02
	interfaceA        = 1
	modemStatusLength = 2
)

// Transport defaults used until Initialize overrides them.
const (
	DefaultTimeout      = time.Second
	DefaultTransferSize = 4096
)

// USBDevice drives an FT232H over libusb.
type USBDevice struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	info         DeviceInfo
	packetSize   int
	transferSize int
	readTimeout  time.Duration
	writeTimeout time.Duration

	logger *zap.Logger
}

// Open claims the first FTDI device on the bus. It fails with a
// *DeviceTypeError when that device is not an FT232H.
func Open(logger *zap.Logger) (*USBDevice, error) {
	return open(logger, "any FTDI device", func(DeviceInfo) bool { return true })
}

// OpenBySerial claims the FTDI device with the given serial number.
func OpenBySerial(logger *zap.Logger, serial string) (*USBDevice, error) {
	return open(logger, fmt.Sprintf("serial %q", serial), func(i DeviceInfo) bool {
		return i.SerialNumber == serial
	})
}

// OpenByDescription claims the FTDI device whose USB product string matches.
func OpenByDescription(logger *zap.Logger, description string) (*USBDevice, error) {
	return open(logger, fmt.Sprintf("description %q", description), func(i DeviceInfo) bool {
		return i.Description == description
	})
}

func open(logger *zap.Logger, what string, match func(DeviceInfo) bool) (*USBDevice, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == VendorIDFTDI
	})
	if err != nil && !errors.Is(err, gousb.ErrorAccess) && len(devs) == 0 {
		ctx.Close()
		return nil, fmt.Errorf("USB error: %w", err)
	}

	var (
		chosen *gousb.Device
		info   DeviceInfo
	)
	for _, dev := range devs {
		if chosen == nil {
			if di := describe(dev); match(di) {
				chosen, info = dev, di
				continue
			}
		}
		dev.Close()
	}
	if chosen == nil {
		ctx.Close()
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, what)
	}
	if info.ProductID != ProductIDFT232H {
		chosen.Close()
		ctx.Close()
		return nil, &DeviceTypeError{Expected: TypeName(ProductIDFT232H), Actual: info.Type}
	}

	// Not supported on every platform.
	_ = chosen.SetAutoDetach(true)

	d := &USBDevice{
		ctx:          ctx,
		dev:          chosen,
		info:         info,
		packetSize:   64,
		transferSize: DefaultTransferSize,
		readTimeout:  DefaultTimeout,
		writeTimeout: DefaultTimeout,
		logger:       logger,
	}
	if err := d.claimInterface(); err != nil {
		return nil, multierr.Combine(err, d.Close())
	}
	logger.Info("opened FTDI device",
		zap.String("type", info.Type),
		zap.String("serial", info.SerialNumber),
		zap.String("description", info.Description),
		zap.Int("bus", info.Bus),
		zap.Int("address", info.Address))
	return d, nil
}

func describe(dev *gousb.Device) DeviceInfo {
	serial, _ := dev.SerialNumber()
	product, _ := dev.Product()
	return DeviceInfo{
		Type:         TypeName(uint16(dev.Desc.Product)),
		VendorID:     uint16(dev.Desc.Vendor),
		ProductID:    uint16(dev.Desc.Product),
		SerialNumber: serial,
		Description:  product,
		Bus:          dev.Desc.Bus,
		Address:      dev.Desc.Address,
	}
}

// claimInterface claims interface 0 and opens its bulk endpoints.
func (d *USBDevice) claimInterface() error {
	cfg, err := d.dev.Config(1)
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}
	d.cfg = cfg

	intf, err := cfg.Interface(0, 0)
	if err != nil {
		return fmt.Errorf("failed to claim interface 0: %w", err)
	}
	d.intf = intf

	var inAddr, outAddr int
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch ep.Direction {
		case gousb.EndpointDirectionIn:
			if inAddr == 0 {
				inAddr = ep.Number
				d.packetSize = ep.MaxPacketSize
			}
		case gousb.EndpointDirectionOut:
			if outAddr == 0 {
				outAddr = ep.Number
			}
		}
	}
	if inAddr == 0 || outAddr == 0 {
		return fmt.Errorf("bulk endpoints not found")
	}

	if d.epIn, err = intf.InEndpoint(inAddr); err != nil {
		return fmt.Errorf("failed to open IN endpoint: %w", err)
	}
	if d.epOut, err = intf.OutEndpoint(outAddr); err != nil {
		return fmt.Errorf("failed to open OUT endpoint: %w", err)
	}
	return nil
}

// Info returns the USB identity of the device.
func (d *USBDevice) Info() DeviceInfo {
	return d.info
}

func (d *USBDevice) control(request uint8, value, index uint16) error {
	if _, err := d.dev.Control(requestTypeOut, request, value, index, nil); err != nil {
		if isTimeout(err) {
			return &TimeoutError{Op: fmt.Sprintf("control 0x%02X", request), Timeout: d.dev.ControlTimeout, Err: err}
		}
		return fmt.Errorf("control request 0x%02X failed: %w", request, err)
	}
	return nil
}

// Initialize resets the chip and switches it into MPSSE mode.
func (d *USBDevice) Initialize(s Settings) error {
	if s.ReadTimeout > 0 {
		d.readTimeout = s.ReadTimeout
	}
	if s.WriteTimeout > 0 {
		d.writeTimeout = s.WriteTimeout
	}
	if s.InTransferSize > 0 {
		d.transferSize = int(s.InTransferSize)
	}
	d.dev.ControlTimeout = d.writeTimeout

	latency := s.LatencyTimer / time.Millisecond
	if latency < 1 || latency > 255 {
		return fmt.Errorf("%w: latency timer %s out of range 1ms - 255ms", ErrConfiguration, s.LatencyTimer)
	}

	if s.Reset {
		if err := d.control(sioReset, sioResetSIO, interfaceA); err != nil {
			return err
		}
	}
	steps := []struct {
		request      uint8
		value, index uint16
	}{
		{sioReset, sioResetPurgeRX, interfaceA},
		{sioReset, sioResetPurgeTX, interfaceA},
		{sioSetEventChar, 0, interfaceA},
		{sioSetErrorChar, 0, interfaceA},
		{sioSetLatency, uint16(latency), interfaceA},
		{sioSetFlowCtrl, 0, sioRTSCTSHS | interfaceA},
		{sioSetBitMode, bitModeReset << 8, interfaceA},
		{sioSetBitMode, bitModeMPSSE<<8 | uint16(s.Mask), interfaceA},
	}
	for _, st := range steps {
		if err := d.control(st.request, st.value, st.index); err != nil {
			return err
		}
	}

	if err := d.synchronize(); err != nil {
		return err
	}

	cmd := NewCommand()
	if s.ClockFrequency != 0 {
		cmd.SetClock(s.ClockFrequency)
	}
	cmd.Loopback(false).SetGPIOLower(0, s.Mask)
	if _, err := d.Exec(cmd); err != nil {
		return err
	}

	d.logger.Debug("MPSSE initialized",
		zap.Bool("reset", s.Reset),
		zap.Int("transferSize", d.transferSize),
		zap.Duration("readTimeout", d.readTimeout),
		zap.Duration("writeTimeout", d.writeTimeout),
		zap.Duration("latency", s.LatencyTimer),
		zap.Uint8("mask", s.Mask),
		zap.Stringer("clock", s.ClockFrequency))
	return nil
}

// synchronize sends a bogus opcode and waits for the engine to reject it.
func (d *USBDevice) synchronize() error {
	const bogus = 0xAB
	if err := d.write([]byte{bogus}); err != nil {
		return err
	}
	resp, err := d.read(2)
	if err != nil {
		return err
	}
	if !bytes.Equal(resp, []byte{BadCommand, bogus}) {
		return fmt.Errorf("%w: MPSSE sync failed, got % X", ErrConfiguration, resp)
	}
	return nil
}

// SetClock reprograms the MPSSE clock divisor.
func (d *USBDevice) SetClock(f physic.Frequency) error {
	_, err := d.Exec(NewCommand().SetClock(f))
	return err
}

// SetGPIOLower drives the AD bus.
func (d *USBDevice) SetGPIOLower(value, direction byte) error {
	_, err := d.Exec(NewCommand().SetGPIOLower(value, direction))
	return err
}

// GPIOLower samples the AD bus.
func (d *USBDevice) GPIOLower() (byte, error) {
	resp, err := d.Exec(NewCommand().GPIOLower().SendImmediate())
	if err != nil {
		return 0, err
	}
	return resp[0], nil
}

// Exec writes the command and reads its response.
func (d *USBDevice) Exec(cmd *Command) ([]byte, error) {
	if err := cmd.Err(); err != nil {
		return nil, err
	}
	if err := d.write(cmd.Bytes()); err != nil {
		return nil, err
	}
	if cmd.ReadLen() == 0 {
		return nil, nil
	}
	return d.read(cmd.ReadLen())
}

func (d *USBDevice) write(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()

	n, err := d.epOut.WriteContext(ctx, data)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return &TimeoutError{Op: "write", Timeout: d.writeTimeout, Err: err}
		}
		return fmt.Errorf("USB write failed: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("USB write short: %d of %d bytes", n, len(data))
	}
	return nil
}

// read collects n payload bytes, discarding the modem status header that
// prefixes every USB packet.
func (d *USBDevice) read(n int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.readTimeout)
	defer cancel()

	size := d.transferSize - d.transferSize%d.packetSize
	if size < d.packetSize {
		size = d.packetSize
	}
	buf := make([]byte, size)
	out := make([]byte, 0, n)
	for len(out) < n {
		m, err := d.epIn.ReadContext(ctx, buf)
		if err != nil {
			if ctx.Err() != nil || isTimeout(err) {
				return nil, &TimeoutError{Op: "read", Timeout: d.readTimeout, Err: err}
			}
			return nil, fmt.Errorf("USB read failed: %w", err)
		}
		out = appendPayload(out, buf[:m], d.packetSize)
	}
	if len(out) != n {
		d.logger.Warn("unexpected MPSSE response length",
			zap.Int("want", n), zap.Int("got", len(out)), zap.Binary("data", out))
	}
	return checkResponse(out, n)
}

func checkResponse(out []byte, n int) ([]byte, error) {
	if len(out) > n {
		return nil, fmt.Errorf("%w: received %d bytes, expected %d", ErrResponseLength, len(out), n)
	}
	return out, nil
}

func appendPayload(dst, transfer []byte, packetSize int) []byte {
	for len(transfer) > 0 {
		end := min(packetSize, len(transfer))
		if end > modemStatusLength {
			dst = append(dst, transfer[modemStatusLength:end]...)
		}
		transfer = transfer[end:]
	}
	return dst
}

func isTimeout(err error) bool {
	return errors.Is(err, gousb.ErrorTimeout) || errors.Is(err, gousb.TransferTimedOut)
}

// Close resets the bit mode and releases USB resources.
func (d *USBDevice) Close() error {
	var err error
	if d.dev != nil && d.intf != nil {
		err = multierr.Append(err, d.control(sioSetBitMode, bitModeReset<<8, interfaceA))
	}
	if d.intf != nil {
		d.intf.Close()
		d.intf = nil
	}
	if d.cfg != nil {
		err = multierr.Append(err, d.cfg.Close())
		d.cfg = nil
	}
	if d.dev != nil {
		err = multierr.Append(err, d.dev.Close())
		d.dev = nil
	}
	if d.ctx != nil {
		err = multierr.Append(err, d.ctx.Close())
		d.ctx = nil
	}
	return err
}

var _ Driver = (*USBDevice)(nil)
