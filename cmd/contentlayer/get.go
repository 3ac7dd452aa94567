package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/contentlayer"
	"github.com/aretw0/contentlayer/pkg/core"
)

var getHTML bool

var getCmd = &cobra.Command{
	Use:   "get <collection> <id>",
	Short: "Print one entry",
	Long:  `Print an entry as JSON, or its rendered HTML with --html.`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		name, id := args[0], args[1]
		cl, err := openLayer()
		if err != nil {
			fatal("Failed to initialize content layer", err)
		}
		defer cl.Shutdown(context.Background())

		if err := cl.Sync(cmd.Context(), contentlayer.SyncOptions{Collections: []string{name}}); err != nil {
			fatal("Sync failed", err)
		}

		entry, ok := cl.Store().Get(name, id)
		if !ok {
			fatal("Error reading entry", fmt.Errorf("%w: %s/%s", core.ErrNotFound, name, id))
		}

		if getHTML {
			if entry.Rendered == nil {
				fatal("Error reading entry", fmt.Errorf("%s/%s has no rendered content", name, id))
			}
			fmt.Fprint(cmd.OutOrStdout(), entry.Rendered.HTML)
			return
		}

		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(entry); err != nil {
			fatal("Error encoding JSON", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().BoolVar(&getHTML, "html", false, "Print the rendered HTML")
}
