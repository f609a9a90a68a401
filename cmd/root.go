// Package cmd defines the arena2api command line.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arena2api",
	Short: "Arena.ai to OpenAI API gateway",
	Long:  "arena2api bridges OpenAI-compatible clients onto arena.ai through browser profiles pushed by the companion extension.",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)
	rootCmd.SilenceUsage = true
}
