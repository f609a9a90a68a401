package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arena2api/arena2api/internal/api/handlers"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the arena2api version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "arena2api "+handlers.Version)
		},
	})
}
