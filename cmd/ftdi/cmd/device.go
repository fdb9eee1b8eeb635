package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"

	"github.com/OpenTraceLab/OpenTraceFTDI/internal/logging"
	"github.com/OpenTraceLab/OpenTraceFTDI/pkg/ft232h"
	"github.com/OpenTraceLab/OpenTraceFTDI/pkg/mpsse"
)

var (
	// Global flags
	verbose      bool
	useSim       bool
	serial       string
	description  string
	clock        = frequencyFlag(ft232h.DefaultSettings().ClockFrequency)
	latency      time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
	transferSize uint32
	noReset      bool
)

// newSim builds the driver used with --sim.
var newSim = mpsse.NewSim

// frequencyFlag lets pflag parse physic frequencies such as 400kHz.
type frequencyFlag physic.Frequency

func (f *frequencyFlag) String() string { return physic.Frequency(*f).String() }

func (f *frequencyFlag) Set(s string) error { return (*physic.Frequency)(f).Set(s) }

func (f *frequencyFlag) Type() string { return "frequency" }

func addDeviceFlags(c *cobra.Command) {
	defaults := ft232h.DefaultSettings()
	flags := c.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.BoolVar(&useSim, "sim", false, "use the simulated device instead of USB")
	flags.StringVarP(&serial, "serial", "s", "", "open the device with this serial number")
	flags.StringVarP(&description, "description", "d", "", "open the device with this product description")
	flags.Var(&clock, "clock", "MPSSE clock frequency (e.g. 100kHz, 1MHz)")
	flags.DurationVar(&latency, "latency", defaults.LatencyTimer, "USB latency timer (1ms - 255ms)")
	flags.DurationVar(&readTimeout, "read-timeout", defaults.ReadTimeout, "USB read timeout")
	flags.DurationVar(&writeTimeout, "write-timeout", defaults.WriteTimeout, "USB write timeout")
	flags.Uint32Var(&transferSize, "transfer-size", defaults.InTransferSize, "USB IN transfer size in bytes")
	flags.BoolVar(&noReset, "no-reset", false, "skip the USB reset during initialization")
}

func settingsFromFlags() mpsse.Settings {
	return mpsse.Settings{
		Reset:          !noReset,
		InTransferSize: transferSize,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		LatencyTimer:   latency,
		ClockFrequency: physic.Frequency(clock),
	}
}

// openDevice opens and initializes the device selected by the global flags.
// The returned release func closes the device and flushes the logger.
func openDevice() (*ft232h.Initialized, func(), error) {
	logger, err := logging.NewLogger("ftdi", verbose)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	var dev *ft232h.Uninitialized
	switch {
	case useSim:
		dev = ft232h.FromDriver(logger, newSim())
	case serial != "":
		dev, err = ft232h.OpenBySerial(logger, serial)
	case description != "":
		dev, err = ft232h.OpenByDescription(logger, description)
	default:
		dev, err = ft232h.Open(logger)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open device: %w", err)
	}
	if clock == 0 {
		_ = dev.Close()
		return nil, nil, fmt.Errorf("--clock must be greater than zero")
	}

	hal, err := dev.Init(settingsFromFlags())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize device: %w", err)
	}
	logger.Debug("device ready", zap.String("device", hal.Info().Label()))

	release := func() {
		if err := hal.Close(); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return hal, release, nil
}
