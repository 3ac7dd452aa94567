package loaders

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/contentlayer/pkg/adapters/fs"
	"github.com/aretw0/contentlayer/pkg/core"
)

// Parser decodes the contents of a data file. It may return []any,
// []map[string]any, map[string]any or fs.Ordered.
type Parser func(ctx context.Context, contents []byte) (any, error)

// FileOptions configures the File loader.
type FileOptions struct {
	// Parser overrides the extension-based decoder.
	Parser Parser
}

// FileLoader loads every record of a single data file.
type FileLoader struct {
	path string
	opts FileOptions
}

// File returns a loader reading the records of one JSON, YAML, TOML or CSV file.
// path is resolved against the project root.
func File(path string, opts ...FileOptions) *FileLoader {
	l := &FileLoader{path: path}
	if len(opts) > 0 {
		l.opts = opts[0]
	}
	return l
}

var (
	_ core.Loader   = (*FileLoader)(nil)
	_ core.Digester = (*FileLoader)(nil)
)

func (l *FileLoader) Name() string { return "file-loader" }

// Digest identifies the loader configuration.
func (l *FileLoader) Digest() string {
	return "file:" + l.path + fmt.Sprintf(":custom-parser=%t", l.opts.Parser != nil)
}

func (l *FileLoader) Load(ctx context.Context, lc *core.LoaderContext) error {
	logger := loggerOf(lc)

	if strings.ContainsAny(l.path, "*?[]{}") {
		return fmt.Errorf("%w: glob patterns are not supported by the file loader (%q), use the glob loader instead", core.ErrConfig, l.path)
	}

	abs := resolve(lc.Settings.Root, l.path)
	source := relative(lc.Settings.Root, abs)

	parse := l.opts.Parser
	if parse == nil {
		ext := strings.ToLower(filepath.Ext(abs))
		decode, ok := fs.DefaultDecoders()[ext]
		if !ok {
			return fmt.Errorf("%w: no parser for %q files, provide FileOptions.Parser", core.ErrConfig, ext)
		}
		parse = func(_ context.Context, contents []byte) (any, error) { return decode(contents) }
	}

	if lc.Watcher != nil {
		if err := lc.Watcher.Add(abs); err != nil {
			logger.Warn("failed to watch file", "path", source, "error", err)
		}
	}

	contents, err := os.ReadFile(abs)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("file not found", "path", source)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", source, err)
	}

	v, err := parse(ctx, contents)
	if err != nil {
		logger.Error("failed to parse file", "path", source, "error", err)
		return nil
	}
	records, err := recordsFrom(v)
	if err != nil {
		logger.Error("unsupported file contents", "path", source, "error", err)
		return nil
	}

	lc.Store.Clear()
	in := &ingester{lc: lc, logger: logger, source: source}
	for i, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		in.put(r, i)
	}
	logger.Debug("loaded file", "path", source, "entries", len(lc.Store.Keys()))
	return nil
}
