package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/contentlayer"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list <collection>",
	Short: "List the entries of a collection",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]
		cl, err := openLayer()
		if err != nil {
			fatal("Failed to initialize content layer", err)
		}
		defer cl.Shutdown(context.Background())

		if err := cl.Sync(cmd.Context(), contentlayer.SyncOptions{Collections: []string{name}}); err != nil {
			fatal("Sync failed", err)
		}

		entries := cl.Store().Values(name)
		if listJSON {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(entries); err != nil {
				fatal("Error encoding JSON", err)
			}
			return
		}

		for _, e := range entries {
			title := ""
			if t, ok := e.Data["title"].(string); ok {
				title = fmt.Sprintf("- %s", t)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", e.ID, title)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
}
