package cmd

import (
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceFTDI/pkg/script"
)

// runProgram opens the device and runs prog against it, printing read data
// to the command's output.
func runProgram(cmd *cobra.Command, prog *script.Program) error {
	hal, release, err := openDevice()
	if err != nil {
		return err
	}
	defer release()

	return script.Run(cmd.Context(), hal, prog, cmd.OutOrStdout())
}

// runSource compiles a script held in memory and runs it.
func runSource(cmd *cobra.Command, src string) error {
	prog, err := script.CompileString(src)
	if err != nil {
		return err
	}
	return runProgram(cmd, prog)
}
