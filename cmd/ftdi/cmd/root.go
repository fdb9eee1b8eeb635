package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ftdi",
	Short: "Drive SPI, I2C and GPIO through an FT232H",
	Long: `A command line front end for the FT232H MPSSE engine. Each command opens the
device, claims the pins it needs, performs one transaction and closes the device.

Pin map (AD bus):
  AD0  SCK / SCL
  AD1  MOSI / SDA out
  AD2  MISO / SDA in (tie to AD1 for I2C)
  AD3-AD7  general purpose outputs

Examples:
  ftdi devices                                   # List attached FTDI devices
  ftdi gpio AD3 high                             # Drive AD3 high
  ftdi spi xfer --cs AD3 0x9F 0 0 0              # Read a flash JEDEC ID
  ftdi i2c read 0x50 16 --clock 400kHz           # Read 16 bytes from an EEPROM
  ftdi run sequence.ftdi --sim                   # Run a script on the simulator`,
	Version:      "0.1.0",
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	addDeviceFlags(rootCmd)
}
