// Package main provides the jurubahasa operator CLI.
//
// Usage:
//
//	jurubahasa [flags] <command> [args]
//
// Commands:
//
//	translate - translate text between the two languages of a pair
//	speak     - synthesize text into an audio file
//	interpret - interpret lines read from stdin into audio files
//	connect   - join a running server as an interpreter client
//
// Credentials are read from the environment or a .env file, the same
// variables the server uses.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/internal/config"
)

var (
	verbose bool
	logger  = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "jurubahasa",
	Short:         "Live two-language interpreter tools",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			dev, err := zap.NewDevelopment()
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			logger = dev
		}
		config.Load(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log adapter activity to stderr")
	rootCmd.AddCommand(translateCmd, speakCmd, interpretCmd)
}

func main() {
	defer func() { logger.Sync() }()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
