package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/contentlayer"
	"github.com/aretw0/contentlayer/pkg/adapters/lifecycle"
)

var devDebounce time.Duration

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Sync, then keep syncing as files change",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cl, err := openLayer(
			contentlayer.WithWatch(true),
			contentlayer.WithWatchDebounce(devDebounce),
		)
		if err != nil {
			fatal("Failed to initialize content layer", err)
		}

		source := lifecycle.NewSource(cl.Events())
		if err := source.Start(ctx); err != nil {
			fatal("Failed to start event stream", err)
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			for e := range source.Events() {
				fmt.Println(e.String())
			}
		}()

		if err := cl.Sync(ctx, contentlayer.SyncOptions{}); err != nil {
			fmt.Fprintf(os.Stderr, "Error: initial sync failed: %v\n", err)
		}

		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cl.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: shutdown: %v\n", err)
		}
		<-done
	},
}

func init() {
	rootCmd.AddCommand(devCmd)
	devCmd.Flags().DurationVar(&devDebounce, "debounce", 100*time.Millisecond, "Quiet period before a change triggers a sync")
}
