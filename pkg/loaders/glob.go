package loaders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/contentlayer/pkg/core"
)

// GenerateIDInput is handed to a custom GlobOptions.GenerateID.
type GenerateIDInput struct {
	// Entry is the path of the file relative to the base, with forward slashes.
	Entry string
	Base  string
	Data  map[string]any
}

// GlobOptions configures the Glob loader.
type GlobOptions struct {
	// Pattern and Patterns are doublestar patterns relative to Base.
	// Entries starting with "!" exclude matches.
	Pattern  string
	Patterns []string
	// Base defaults to the project root.
	Base string
	// RetainBody defaults to true.
	RetainBody *bool
	GenerateID func(GenerateIDInput) string
	// GetEntryInfo overrides the entry type parser for every file.
	GetEntryInfo func(contents []byte, fileURL *url.URL) (*EntryInfo, error)
	// EntryTypes defaults to DefaultEntryTypes().
	EntryTypes []EntryType
}

// GlobLoader creates one entry per matching file.
type GlobLoader struct {
	opts     GlobOptions
	includes []string
	excludes []string
}

// Glob returns a loader creating one entry per file matching the options' patterns.
func Glob(opts GlobOptions) *GlobLoader {
	l := &GlobLoader{opts: opts}
	all := opts.Patterns
	if opts.Pattern != "" {
		all = append([]string{opts.Pattern}, all...)
	}
	for _, p := range all {
		p = strings.TrimSpace(p)
		switch {
		case p == "":
		case strings.HasPrefix(p, "!"):
			l.excludes = append(l.excludes, strings.TrimPrefix(strings.TrimPrefix(p, "!"), "./"))
		default:
			l.includes = append(l.includes, strings.TrimPrefix(p, "./"))
		}
	}
	if len(l.opts.EntryTypes) == 0 {
		l.opts.EntryTypes = DefaultEntryTypes()
	}
	return l
}

var (
	_ core.Loader   = (*GlobLoader)(nil)
	_ core.Digester = (*GlobLoader)(nil)
)

func (l *GlobLoader) Name() string { return "glob-loader" }

// Digest identifies the loader configuration.
func (l *GlobLoader) Digest() string {
	var b strings.Builder
	fmt.Fprintf(&b, "glob:%s|%s|base=%s|retain=%t", strings.Join(l.includes, ","), strings.Join(l.excludes, ","), l.opts.Base, l.retainBody())
	fmt.Fprintf(&b, "|custom-id=%t|custom-info=%t", l.opts.GenerateID != nil, l.opts.GetEntryInfo != nil)
	for _, et := range l.opts.EntryTypes {
		fmt.Fprintf(&b, "|%s:%s", et.Name, strings.Join(et.Extensions, ","))
	}
	return b.String()
}

func (l *GlobLoader) retainBody() bool {
	return l.opts.RetainBody == nil || *l.opts.RetainBody
}

func (l *GlobLoader) patternString() string {
	parts := append([]string(nil), l.includes...)
	for _, ex := range l.excludes {
		parts = append(parts, "!"+ex)
	}
	return strings.Join(parts, ", ")
}

// removeAll drops every entry of the collection; nothing on disk backs them anymore.
func removeAll(lc *core.LoaderContext, logger *slog.Logger) {
	for _, id := range lc.Store.Keys() {
		lc.Store.Delete(id)
		logger.Debug("removed stale entry", "id", id)
	}
}

func (l *GlobLoader) Load(ctx context.Context, lc *core.LoaderContext) error {
	logger := loggerOf(lc)

	base := lc.Settings.Root
	if l.opts.Base != "" {
		base = resolve(lc.Settings.Root, l.opts.Base)
	}
	if info, err := os.Stat(base); err != nil || !info.IsDir() {
		logger.Warn("the base directory does not exist", "base", relative(lc.Settings.Root, base))
		removeAll(lc, logger)
		return nil
	}
	if len(l.includes) == 0 {
		return fmt.Errorf("%w: glob loader needs at least one pattern", core.ErrConfig)
	}

	files, err := l.match(base)
	if err != nil {
		return err
	}

	if lc.Watcher != nil {
		if err := lc.Watcher.Add(base); err != nil {
			logger.Warn("failed to watch directory", "base", base, "error", err)
		}
	}

	if len(files) == 0 {
		logger.Warn(fmt.Sprintf("no files found matching %q in directory %q", l.patternString(), relative(lc.Settings.Root, base)))
		removeAll(lc, logger)
		return nil
	}

	untouched := make(map[string]bool)
	for _, id := range lc.Store.Keys() {
		untouched[id] = true
	}
	seen := make(map[string]string)

	for _, entry := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		id, ok := l.syncFile(ctx, lc, base, entry, seen)
		if ok {
			delete(untouched, id)
		}
	}

	for _, id := range lc.Store.Keys() {
		if untouched[id] {
			lc.Store.Delete(id)
			logger.Debug("removed stale entry", "id", id)
		}
	}
	return nil
}

// match lists files relative to base, sorted and de-duplicated.
func (l *GlobLoader) match(base string) ([]string, error) {
	fsys := os.DirFS(base)
	set := make(map[string]bool)
	for _, pattern := range l.includes {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: invalid glob pattern %q", core.ErrConfig, pattern)
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			set[m] = true
		}
	}

	files := make([]string, 0, len(set))
	for m := range set {
		excluded := false
		for _, ex := range l.excludes {
			if ok, _ := doublestar.Match(ex, m); ok {
				excluded = true
				break
			}
		}
		if !excluded {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// syncFile ingests one file and returns its id. ok is false when no entry
// could be produced, so a previous entry under that id is treated as stale.
func (l *GlobLoader) syncFile(ctx context.Context, lc *core.LoaderContext, base, entry string, seen map[string]string) (string, bool) {
	logger := loggerOf(lc)
	abs := filepath.Join(base, filepath.FromSlash(entry))
	filePath := relative(lc.Settings.Root, abs)

	et, ok := entryTypeFor(l.opts.EntryTypes, entry)
	if !ok && l.opts.GetEntryInfo == nil {
		logger.Warn("no entry type found for file", "file", filePath)
		return "", false
	}
	getInfo := et.GetEntryInfo
	if l.opts.GetEntryInfo != nil {
		getInfo = l.opts.GetEntryInfo
	}

	contents, err := os.ReadFile(abs)
	if err != nil {
		logger.Error("failed to read file", "file", filePath, "error", err)
		return "", false
	}
	fileURL := &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}

	info, err := getInfo(contents, fileURL)
	if err != nil {
		logger.Error("failed to parse file", "file", filePath, "error", err)
		return "", false
	}
	if info.Data == nil {
		info.Data = map[string]any{}
	}

	id := l.generateID(entry, base, info)
	if id == "" {
		logger.Error("entry id is empty, skipping", "file", filePath)
		return "", false
	}
	if prev, dup := seen[id]; dup {
		logger.Warn(fmt.Sprintf("duplicate id %q found in %s, later items with the same id will overwrite earlier ones", id, filePath),
			"id", id, "previous", prev)
	}
	seen[id] = filePath

	digest := lc.GenerateDigest(string(contents))
	if existing, ok := lc.Store.Get(id); ok && existing.Digest == digest && existing.FilePath == filePath {
		return id, true
	}

	data, err := lc.ParseData(core.ParseInput{ID: id, Data: info.Data, FilePath: filePath})
	if err != nil {
		logger.Error("skipping invalid entry", "id", id, "file", filePath, "error", err)
		return id, false
	}

	e := core.Entry{
		ID:       id,
		Data:     data,
		FilePath: filePath,
		Digest:   digest,
	}
	if l.retainBody() {
		e.Body = info.Body
	}

	switch {
	case info.HTML != "":
		e.Rendered = &core.Rendered{HTML: info.HTML, Metadata: core.RenderMetadata{Frontmatter: info.Data}}
	case et.DeferRender:
		e.DeferredRender = true
	case et.Render && lc.RenderMarkdown != nil:
		rendered, err := lc.RenderMarkdown(ctx, info.Body, core.RenderOptions{FileURL: fileURL, Frontmatter: info.Data})
		switch {
		case errors.Is(err, core.ErrNoRenderer):
		case err != nil:
			logger.Error("failed to render entry", "id", id, "file", filePath, "error", err)
			return id, false
		default:
			e.Rendered = rendered
			e.AssetImports = rendered.Metadata.LocalImagePaths
		}
	}

	if _, err := lc.Store.Set(e); err != nil {
		logger.Error("failed to store entry", "id", id, "error", err)
		return id, false
	}
	return id, true
}

func (l *GlobLoader) generateID(entry, base string, info *EntryInfo) string {
	if l.opts.GenerateID != nil {
		return l.opts.GenerateID(GenerateIDInput{Entry: entry, Base: base, Data: info.Data})
	}
	if info.Slug != "" {
		return info.Slug
	}
	return DefaultID(entry)
}

// DefaultID derives an id from a base-relative path: the extension is
// stripped and a trailing "/index" collapses to its directory.
func DefaultID(entry string) string {
	id := strings.TrimSuffix(entry, path.Ext(entry))
	return strings.TrimSuffix(id, "/index")
}
