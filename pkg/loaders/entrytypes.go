package loaders

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/aretw0/contentlayer/pkg/adapters/fs"
)

// EntryInfo is what an entry type extracts from one source file.
type EntryInfo struct {
	Data map[string]any
	Body string
	// Slug, when set, replaces the path-derived id.
	Slug string
	// HTML is pre-rendered output for sources that already are HTML.
	HTML string
}

// EntryType reads one family of content files.
type EntryType struct {
	Name       string
	Extensions []string
	// GetEntryInfo splits a file into data and body.
	GetEntryInfo func(contents []byte, fileURL *url.URL) (*EntryInfo, error)
	// Render passes the body through the markdown renderer.
	Render bool
	// DeferRender flags entries for rendering by the consumer instead.
	DeferRender bool
}

// MarkdownExtensions are the file extensions treated as markdown.
var MarkdownExtensions = []string{".md", ".markdown", ".mdown", ".mkdn", ".mkd", ".mdwn"}

// Markdown reads frontmatter documents and renders their body.
func Markdown() EntryType {
	return EntryType{
		Name:       "markdown",
		Extensions: MarkdownExtensions,
		Render:     true,
		GetEntryInfo: func(contents []byte, _ *url.URL) (*EntryInfo, error) {
			fm, err := fs.ParseFrontmatter(contents)
			if err != nil {
				return nil, err
			}
			return &EntryInfo{Data: fm.Data, Body: fm.Body, Slug: slugOf(fm.Data)}, nil
		},
	}
}

// Data reads whole files as entry data: JSON, YAML and TOML objects.
func Data() EntryType {
	decoders := fs.DefaultDecoders()
	return EntryType{
		Name:       "data",
		Extensions: []string{".json", ".yaml", ".yml", ".toml"},
		GetEntryInfo: func(contents []byte, fileURL *url.URL) (*EntryInfo, error) {
			ext := strings.ToLower(filepath.Ext(fileURL.Path))
			v, err := decoders[ext](contents)
			if err != nil {
				return nil, err
			}
			var data map[string]any
			switch t := v.(type) {
			case nil:
				data = map[string]any{}
			case fs.Ordered:
				data = t.Map()
			case map[string]any:
				data = t
			default:
				return nil, fmt.Errorf("expected an object, got %T", v)
			}
			return &EntryInfo{Data: data, Slug: slugOf(data)}, nil
		},
	}
}

// HTML reads HTML documents, optionally preceded by frontmatter. The HTML is
// kept as the rendered output and the body holds its markdown conversion.
func HTML() EntryType {
	return EntryType{
		Name:       "html",
		Extensions: []string{".html", ".htm"},
		GetEntryInfo: func(contents []byte, _ *url.URL) (*EntryInfo, error) {
			fm, err := fs.ParseFrontmatter(contents)
			if err != nil {
				return nil, err
			}
			body, err := htmltomarkdown.ConvertString(fm.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to convert html: %w", err)
			}
			return &EntryInfo{Data: fm.Data, Body: body, Slug: slugOf(fm.Data), HTML: fm.Body}, nil
		},
	}
}

// DefaultEntryTypes returns the entry types the glob loader uses when none are given.
func DefaultEntryTypes() []EntryType {
	return []EntryType{Markdown(), Data(), HTML()}
}

func entryTypeFor(types []EntryType, file string) (EntryType, bool) {
	ext := strings.ToLower(filepath.Ext(file))
	for _, et := range types {
		for _, e := range et.Extensions {
			if e == ext {
				return et, true
			}
		}
	}
	return EntryType{}, false
}

func slugOf(data map[string]any) string {
	if s, ok := data["slug"].(string); ok {
		return s
	}
	return ""
}
