package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var gpioCmd = &cobra.Command{
	Use:   "gpio <pin> high|low",
	Short: "Drive an AD pin as an output",
	Long: `Configure one AD pin as an output and drive it high or low. The level is held
until the device is reset or another command reconfigures the pin.

Examples:
  ftdi gpio AD3 high
  ftdi gpio ad7 low --serial FT1234AB`,
	Args: cobra.ExactArgs(2),
	RunE: runGPIO,
}

func init() {
	rootCmd.AddCommand(gpioCmd)
}

func runGPIO(cmd *cobra.Command, args []string) error {
	level := strings.ToLower(args[1])
	if level != "high" && level != "low" {
		return fmt.Errorf("level must be high or low, got %q", args[1])
	}
	return runSource(cmd, fmt.Sprintf("gpio %s %s", args[0], level))
}
