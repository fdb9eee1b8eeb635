package cmd

import (
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceFTDI/pkg/script"
)

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a transaction script",
	Long: `Run a transaction script. Scripts hold one statement per line; # starts a comment.

  gpio <pin> high|low
  spi mode 0|2
  spi write <byte>...
  spi xfer <byte>...
  i2c <addr> write <byte>...
  i2c <addr> read <count>
  i2c <addr> xfer <byte>... : <count>
  delay <duration>

A script uses either SPI or I2C. Pin usage is checked before the device is opened,
and bytes read by xfer and read statements are printed one line per statement.`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runScript(cmd *cobra.Command, args []string) error {
	parser, err := script.NewParser()
	if err != nil {
		return err
	}
	file, err := parser.ParseFile(args[0])
	if err != nil {
		return err
	}
	prog, err := script.Compile(file)
	if err != nil {
		return err
	}
	return runProgram(cmd, prog)
}
