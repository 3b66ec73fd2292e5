package main

import (
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the version number of nodectl",
		Args:  cobra.NoArgs,

		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("nodectl version %s (%s)\n", version, commit[:min(len(commit), 7)])
		},
	}
}
