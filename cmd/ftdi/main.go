package main

import "github.com/OpenTraceLab/OpenTraceFTDI/cmd/ftdi/cmd"

func main() {
	cmd.Execute()
}
