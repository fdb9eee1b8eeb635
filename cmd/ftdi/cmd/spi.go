package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	spiCS   string
	spiMode int
)

var spiCmd = &cobra.Command{
	Use:   "spi",
	Short: "SPI transfers on AD0-AD2",
}

var spiWriteCmd = &cobra.Command{
	Use:   "write <byte>...",
	Short: "Clock bytes out, discarding input",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSPI(cmd, "write", args)
	},
}

var spiXferCmd = &cobra.Command{
	Use:   "xfer <byte>...",
	Short: "Full duplex transfer, printing the bytes read",
	Long: `Clock the given bytes out while reading MISO, then print what was read.

Examples:
  ftdi spi xfer --cs AD3 0x9F 0 0 0     # JEDEC ID of a SPI flash`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSPI(cmd, "xfer", args)
	},
}

func init() {
	rootCmd.AddCommand(spiCmd)
	spiCmd.AddCommand(spiWriteCmd, spiXferCmd)

	spiCmd.PersistentFlags().StringVar(&spiCS, "cs", "", "active low chip select pin (AD3-AD7)")
	spiCmd.PersistentFlags().IntVar(&spiMode, "mode", 0, "SPI mode, 0 (clock idles low) or 2 (clock idles high)")
}

func runSPI(cmd *cobra.Command, op string, args []string) error {
	var src strings.Builder
	fmt.Fprintf(&src, "spi mode %d\n", spiMode)
	if spiCS != "" {
		fmt.Fprintf(&src, "gpio %s high\ngpio %s low\n", spiCS, spiCS)
	}
	fmt.Fprintf(&src, "spi %s %s\n", op, strings.Join(args, " "))
	if spiCS != "" {
		fmt.Fprintf(&src, "gpio %s high\n", spiCS)
	}
	return runSource(cmd, src.String())
}
