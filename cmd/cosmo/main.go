package main

import (
	"fmt"
	"os"

	"github.com/Ratio1/cosmo_sdk_go/cmd/cosmo/commands"
)

func main() {
	rootCmd := commands.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
