package main

import (
	"fmt"
	"os"

	"github.com/kirillkom/campus-assistant/cmd/ragctl/commands"
)

var version = "dev"

func main() {
	commands.SetVersion(version)

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
