package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/contentlayer"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of contentlayer",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "contentlayer version %s\n", contentlayer.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
