package cmd

import (
	"fmt"
	"log"
	"os"

	"WaveFM/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wavefm",
	Short: "WaveFM is a personal music streaming service.",
	Run: func(cmd *cobra.Command, args []string) {
		log.Println("Starting WaveFM server...")
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
