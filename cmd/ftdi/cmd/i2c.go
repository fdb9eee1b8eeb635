package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceFTDI/pkg/ft232h"
)

var i2cReadCount int

var i2cCmd = &cobra.Command{
	Use:   "i2c",
	Short: "I2C transactions on AD0-AD2",
	Long: `I2C controller commands. SCL is AD0; SDA is driven on AD1 and sampled on AD2,
so AD1 and AD2 must be tied together. Both lines need pull-up resistors.

The bus runs at two thirds of --clock because of three phase clocking.`,
}

var i2cWriteCmd = &cobra.Command{
	Use:   "write <addr> <byte>...",
	Short: "Write bytes to a target",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSource(cmd, fmt.Sprintf("i2c %s write %s", args[0], strings.Join(args[1:], " ")))
	},
}

var i2cReadCmd = &cobra.Command{
	Use:   "read <addr> <count>",
	Short: "Read bytes from a target",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSource(cmd, fmt.Sprintf("i2c %s read %s", args[0], args[1]))
	},
}

var i2cXferCmd = &cobra.Command{
	Use:   "xfer <addr> <byte>... --read <count>",
	Short: "Write bytes, then read after a repeated start",
	Long: `Write bytes to a target, then issue a repeated start and read --read bytes.

Examples:
  ftdi i2c xfer 0x68 0x75 --read 1      # WHO_AM_I of an MPU-6050`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSource(cmd, fmt.Sprintf("i2c %s xfer %s : %d", args[0], strings.Join(args[1:], " "), i2cReadCount))
	},
}

var i2cScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List addresses that acknowledge",
	Args:  cobra.NoArgs,
	RunE:  runI2CScan,
}

func init() {
	rootCmd.AddCommand(i2cCmd)
	i2cCmd.AddCommand(i2cWriteCmd, i2cReadCmd, i2cXferCmd, i2cScanCmd)

	i2cXferCmd.Flags().IntVarP(&i2cReadCount, "read", "n", 1, "number of bytes to read")
}

func runI2CScan(cmd *cobra.Command, args []string) error {
	hal, release, err := openDevice()
	if err != nil {
		return err
	}
	defer release()

	bus, err := hal.I2C()
	if err != nil {
		return fmt.Errorf("acquire i2c: %w", err)
	}

	out := cmd.OutOrStdout()
	found := 0
	// 0x00-0x07 and 0x78-0x7F are reserved addresses
	for addr := uint8(0x08); addr < 0x78; addr++ {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		err := bus.WriteRead(addr, nil, nil)
		if errors.Is(err, ft232h.ErrNoAck) {
			continue
		}
		if err != nil {
			return fmt.Errorf("probe 0x%02X: %w", addr, err)
		}
		fmt.Fprintf(out, "0x%02X\n", addr)
		found++
	}
	fmt.Fprintf(out, "%d device(s) found\n", found)
	return nil
}
