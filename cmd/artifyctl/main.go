package main

import (
	"fmt"
	"os"

	"artify/cmd/artifyctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
