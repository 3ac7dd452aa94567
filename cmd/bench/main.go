package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/contentlayer"
)

const benchConfig = `collections:
  posts:
    loader:
      type: glob
      pattern: "**/*.md"
      base: posts
    schema:
      type: object
      fields:
        title: string
        date: date
        tags:
          type: array
          items: string
`

func main() {
	count := flag.Int("count", 1000, "Number of posts to generate")
	keep := flag.Bool("keep", false, "Keep the benchmark project after running")
	flag.Parse()

	benchDir, err := os.MkdirTemp("", "contentlayer_bench_")
	if err != nil {
		panic(err)
	}
	defer func() {
		if !*keep {
			os.RemoveAll(benchDir)
		} else {
			fmt.Printf("Keeping bench dir: %s\n", benchDir)
		}
	}()

	fmt.Printf("Generating %d posts in %s...\n", *count, benchDir)
	startGen := time.Now()

	if err := os.MkdirAll(filepath.Join(benchDir, "posts"), 0755); err != nil {
		panic(err)
	}
	if err := os.WriteFile(filepath.Join(benchDir, "contentlayer.yaml"), []byte(benchConfig), 0644); err != nil {
		panic(err)
	}
	for i := 0; i < *count; i++ {
		content := fmt.Sprintf("---\ntitle: Post %d\ndate: %s\ntags: [benchmark, test]\n---\n# Benchmark Post %d\n\nThis is a test post.\n", i, time.Now().Format("2006-01-02"), i)
		filename := filepath.Join(benchDir, "posts", fmt.Sprintf("post_%d.md", i))
		if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
			panic(err)
		}
	}
	fmt.Printf("Generation took: %v\n", time.Since(startGen))

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := context.Background()

	// Cold: parse, validate and render every file.
	cold, err := run(ctx, benchDir, logger)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Cold sync took: %v (%d entries)\n", cold.took, cold.entries)

	// Warm: a new layer reads the persisted store and skips unchanged files.
	warm, err := run(ctx, benchDir, logger)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Warm sync took: %v (%d entries)\n", warm.took, warm.entries)
}

type result struct {
	took    time.Duration
	entries int
}

func run(ctx context.Context, dir string, logger *slog.Logger) (result, error) {
	cl, err := contentlayer.New(dir, contentlayer.WithLogger(logger))
	if err != nil {
		return result{}, err
	}
	defer cl.Shutdown(ctx)

	start := time.Now()
	if err := cl.Sync(ctx, contentlayer.SyncOptions{}); err != nil {
		return result{}, err
	}
	return result{took: time.Since(start), entries: cl.Store().Len("posts")}, nil
}
