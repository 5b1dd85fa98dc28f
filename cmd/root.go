package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pos",
	Short: "Dual-agent POS register CLI",
}

// Execute applies registered commands and runs the CLI.
func Execute() {
	Apply()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
