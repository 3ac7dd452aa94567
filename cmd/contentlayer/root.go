package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aretw0/contentlayer"
)

var (
	verbose    bool
	rootDir    string
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "contentlayer",
	Short: "Sync markdown and data files into typed, validated collections",
	Long: `contentlayer loads content from glob patterns, data files and code
into named collections, validates every entry against its schema, renders
markdown and persists the result in a data store reused by the next run.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)

		loadEnv(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Project root (default: searched upwards from the working directory)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file (default: contentlayer.{yaml,yml,json,jsonc} in the root)")
}

// loadEnv reads the project's .env so CONTENTLAYER_* overrides can live there.
// Variables already set in the environment win.
func loadEnv(logger *slog.Logger) {
	dir := rootDir
	if dir == "" {
		found, err := contentlayer.FindRoot(".")
		if err != nil {
			return
		}
		dir = found
	}
	err := godotenv.Load(filepath.Join(dir, ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to load .env", "error", err)
	}
}

// openLayer creates the content layer from the global flags.
func openLayer(opts ...contentlayer.Option) (*contentlayer.ContentLayer, error) {
	opts = append([]contentlayer.Option{contentlayer.WithLogger(slog.Default())}, opts...)
	if configFile != "" {
		opts = append(opts, contentlayer.WithConfigFile(configFile))
	}
	return contentlayer.New(rootDir, opts...)
}
