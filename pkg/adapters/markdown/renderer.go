// Package markdown is the default rendering collaborator, built on goldmark.
package markdown

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"

	"github.com/aretw0/contentlayer/pkg/core"
)

// Renderer renders markdown to HTML and extracts headings and image paths.
type Renderer struct {
	md goldmark.Markdown
}

var _ core.Renderer = (*Renderer)(nil)

// New configures a renderer from the project's markdown settings.
func New(settings core.MarkdownSettings) *Renderer {
	var exts []goldmark.Extender
	if settings.GFM {
		exts = append(exts, extension.GFM)
	}
	if settings.Typographer {
		exts = append(exts, extension.Typographer)
	}

	var parserOpts []parser.Option
	if settings.AutoHeadingID {
		parserOpts = append(parserOpts, parser.WithAutoHeadingID())
	}

	var rendererOpts []renderer.Option
	if settings.HardWraps {
		rendererOpts = append(rendererOpts, html.WithHardWraps())
	}
	if settings.UnsafeHTML {
		rendererOpts = append(rendererOpts, html.WithUnsafe())
	}

	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(exts...),
			goldmark.WithParserOptions(parserOpts...),
			goldmark.WithRendererOptions(rendererOpts...),
		),
	}
}

// Render implements core.Renderer.
func (r *Renderer) Render(ctx context.Context, source string, opts core.RenderOptions) (*core.Rendered, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := []byte(source)
	doc := r.md.Parser().Parse(text.NewReader(src))

	meta := core.RenderMetadata{Frontmatter: opts.Frontmatter}
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			h := core.Heading{Depth: node.Level, Text: plainText(node, src)}
			if id, ok := node.AttributeString("id"); ok {
				if b, ok := id.([]byte); ok {
					h.Slug = string(b)
				}
			}
			meta.Headings = append(meta.Headings, h)
		case *ast.Image:
			dest := string(node.Destination)
			switch {
			case dest == "" || strings.HasPrefix(dest, "data:"):
			case isRemote(dest):
				meta.RemoteImagePaths = append(meta.RemoteImagePaths, dest)
			default:
				meta.LocalImagePaths = append(meta.LocalImagePaths, dest)
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to inspect markdown: %w", err)
	}

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, src, doc); err != nil {
		return nil, fmt.Errorf("failed to render markdown: %w", err)
	}
	return &core.Rendered{HTML: buf.String(), Metadata: meta}, nil
}

func isRemote(dest string) bool {
	return strings.HasPrefix(dest, "http://") || strings.HasPrefix(dest, "https://") || strings.HasPrefix(dest, "//")
}

// plainText concatenates the text below n.
func plainText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.CodeSpan:
			for child := t.FirstChild(); child != nil; child = child.NextSibling() {
				if txt, ok := child.(*ast.Text); ok {
					b.Write(txt.Segment.Value(src))
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
