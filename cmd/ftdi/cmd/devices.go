package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceFTDI/pkg/mpsse"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List attached FTDI devices",
	Long: `Scan the USB bus for FTDI devices and print their type, serial number and
description. Only FT232H devices can be opened by the other commands; the serial
number or description shown here can be passed with --serial or --description.`,
	Args: cobra.NoArgs,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	var infos []mpsse.DeviceInfo
	if useSim {
		infos = []mpsse.DeviceInfo{newSim().Info()}
	} else {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		var err error
		if infos, err = mpsse.Enumerate(ctx); err != nil {
			return fmt.Errorf("enumerate devices: %w", err)
		}
	}

	if len(infos) == 0 {
		fmt.Fprintln(out, "No FTDI devices found.")
		return nil
	}

	fmt.Fprintln(out, "Detected FTDI devices:")
	for _, info := range infos {
		fmt.Fprintf(out, "  - %s [%s] (VID:PID %04X:%04X)\n", info.Label(), info.Type, info.VendorID, info.ProductID)
	}
	return nil
}
