package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/contentlayer"
)

var (
	syncForce       bool
	syncCollections []string
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run the loaders and update the data store",
	Long: `Run every loader (or the selected collections) once and persist the
data store. Unchanged files are skipped unless --force clears the store first.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cl, err := openLayer()
		if err != nil {
			fatal("Failed to initialize content layer", err)
		}
		defer cl.Shutdown(context.Background())

		err = cl.Sync(cmd.Context(), contentlayer.SyncOptions{
			Force:       syncForce,
			Collections: syncCollections,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Sync failed: %v\n", err)
			os.Exit(1)
		}

		s := cl.Store()
		for _, name := range s.Collections() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entries\n", name, s.Len(name))
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "Clear the data store before loading")
	syncCmd.Flags().StringSliceVar(&syncCollections, "collection", nil, "Only sync the named collections")
}
