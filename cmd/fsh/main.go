package main

import (
	"os"

	"github.com/sahib/fsh/cmd"
)

func main() {
	os.Exit(cmd.RunCmdline(os.Args))
}
