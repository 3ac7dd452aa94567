package loaders_test

import (
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/contentlayer/pkg/loaders"
	"github.com/aretw0/contentlayer/pkg/schema"
)

func postSchema() *schema.Schema {
	return schema.Object(schema.Fields{
		"title":   schema.String(),
		"pubDate": schema.Date(schema.Coerce(), schema.Optional()),
	})
}

func TestGlob_NoFilesFound(t *testing.T) {
	h := newHarness(t)
	h.write(t, "src/content/posts/old.md", "---\ntitle: Old\n---\n")
	loader := loaders.Glob(loaders.GlobOptions{Pattern: "**/*.md", Base: "src/content/posts"})
	require.NoError(t, h.load(t, "posts", nil, loader))
	require.Equal(t, []string{"old"}, h.store.Keys("posts"))

	require.NoError(t, os.Remove(filepath.Join(h.root, "src/content/posts/old.md")))
	h.write(t, "src/content/posts/readme.txt", "not content")

	require.NoError(t, h.load(t, "posts", nil, loader))
	assert.Empty(t, h.store.Values("posts"), "entries of removed files must not survive an empty match")
	assert.Equal(t, 1, h.logs.Count(slog.LevelWarn, "no files found"))
}

func TestGlob_MissingBase(t *testing.T) {
	h := newHarness(t)
	err := h.load(t, "posts", nil, loaders.Glob(loaders.GlobOptions{Pattern: "**/*.md", Base: "missing"}))
	require.NoError(t, err)
	assert.Equal(t, 1, h.logs.Count(slog.LevelWarn, "base directory does not exist"))
	assert.Empty(t, h.store.Collections())
}

func TestGlob_RemovedBaseClearsCollection(t *testing.T) {
	h := newHarness(t)
	h.write(t, "posts/a.md", "---\ntitle: A\n---\n")
	loader := loaders.Glob(loaders.GlobOptions{Pattern: "*.md", Base: "posts"})
	require.NoError(t, h.load(t, "posts", postSchema(), loader))
	require.Equal(t, []string{"a"}, h.store.Keys("posts"))

	require.NoError(t, os.RemoveAll(filepath.Join(h.root, "posts")))

	require.NoError(t, h.load(t, "posts", postSchema(), loader))
	assert.Empty(t, h.store.Keys("posts"))
	assert.Equal(t, 1, h.logs.Count(slog.LevelWarn, "base directory does not exist"))
}

func TestGlob_MarkdownEntries(t *testing.T) {
	h := newHarness(t)
	renderer := &fakeRenderer{}
	h.opts.Renderer = renderer
	h.write(t, "posts/hello.md", `
---
title: Hello
pubDate: 2024-01-02
---
Hello world
`)
	h.write(t, "posts/guides/index.md", "---\ntitle: Guides\n---\nAll guides\n")

	require.NoError(t, h.load(t, "posts", postSchema(), loaders.Glob(loaders.GlobOptions{Pattern: "**/*.md", Base: "posts"})))

	assert.ElementsMatch(t, []string{"guides", "hello"}, h.store.Keys("posts"))

	hello, ok := h.store.Get("posts", "hello")
	require.True(t, ok)
	assert.Equal(t, "Hello", hello.Data["title"])
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), hello.Data["pubDate"])
	assert.Equal(t, "Hello world\n", hello.Body)
	assert.Equal(t, "posts/hello.md", hello.FilePath)
	require.NotNil(t, hello.Rendered)
	assert.Equal(t, "<p>Hello world</p>", hello.Rendered.HTML)
	assert.Equal(t, []string{"./cover.png"}, hello.AssetImports)
	assert.NotEmpty(t, hello.Digest)
	assert.Equal(t, 2, renderer.calls)
}

func TestGlob_SlugOverridesPath(t *testing.T) {
	h := newHarness(t)
	h.write(t, "posts/custom.md", "---\ntitle: Custom\nslug: my-custom-slug\n---\nBody\n")

	require.NoError(t, h.load(t, "posts", postSchema(), loaders.Glob(loaders.GlobOptions{Pattern: "*.md", Base: "posts"})))
	assert.Equal(t, []string{"my-custom-slug"}, h.store.Keys("posts"))
}

func TestGlob_WithoutRendererAndBody(t *testing.T) {
	h := newHarness(t)
	h.write(t, "posts/a.md", "---\ntitle: A\n---\nText\n")
	retain := false

	require.NoError(t, h.load(t, "posts", postSchema(), loaders.Glob(loaders.GlobOptions{
		Pattern:    "*.md",
		Base:       "posts",
		RetainBody: &retain,
	})))

	a, ok := h.store.Get("posts", "a")
	require.True(t, ok)
	assert.Empty(t, a.Body)
	assert.Nil(t, a.Rendered, "no renderer configured")
}

func TestGlob_DataAndHTMLEntries(t *testing.T) {
	h := newHarness(t)
	h.write(t, "authors/ana.json", `{"name":"Ana"}`)
	h.write(t, "authors/bo.yaml", "name: Bo\n")
	h.write(t, "authors/cy.toml", "name = \"Cy\"\n")
	h.write(t, "authors/dee.html", "---\nname: Dee\n---\n<p><strong>Hi</strong></p>")

	s := schema.Object(schema.Fields{"name": schema.String()})
	require.NoError(t, h.load(t, "authors", s, loaders.Glob(loaders.GlobOptions{Pattern: "*", Base: "authors"})))

	assert.Equal(t, []string{"ana", "bo", "cy", "dee"}, h.store.Keys("authors"))
	dee, _ := h.store.Get("authors", "dee")
	require.NotNil(t, dee.Rendered)
	assert.Equal(t, "<p><strong>Hi</strong></p>", dee.Rendered.HTML)
	assert.Equal(t, "**Hi**", dee.Body)
}

func TestGlob_DeferredRenderEntryType(t *testing.T) {
	h := newHarness(t)
	h.opts.Renderer = &fakeRenderer{}
	h.write(t, "docs/a.mdx", "---\ntitle: A\n---\n# A\n")

	mdx := loaders.Markdown()
	mdx.Name = "mdx"
	mdx.Extensions = []string{".mdx"}
	mdx.Render = false
	mdx.DeferRender = true

	require.NoError(t, h.load(t, "docs", postSchema(), loaders.Glob(loaders.GlobOptions{
		Pattern:    "*.mdx",
		Base:       "docs",
		EntryTypes: []loaders.EntryType{mdx},
	})))

	a, _ := h.store.Get("docs", "a")
	assert.True(t, a.DeferredRender)
	assert.Nil(t, a.Rendered)
}

func TestGlob_Excludes(t *testing.T) {
	h := newHarness(t)
	h.write(t, "posts/a.md", "---\ntitle: A\n---\n")
	h.write(t, "posts/drafts/b.md", "---\ntitle: B\n---\n")

	require.NoError(t, h.load(t, "posts", postSchema(), loaders.Glob(loaders.GlobOptions{
		Patterns: []string{"**/*.md", "!drafts/**"},
		Base:     "posts",
	})))
	assert.Equal(t, []string{"a"}, h.store.Keys("posts"))
}

func TestGlob_DotSlashPatterns(t *testing.T) {
	h := newHarness(t)
	h.write(t, "posts/a.md", "---\ntitle: A\n---\n")
	h.write(t, "posts/drafts/b.md", "---\ntitle: B\n---\n")

	require.NoError(t, h.load(t, "posts", postSchema(), loaders.Glob(loaders.GlobOptions{
		Patterns: []string{"./**/*.md", "!./drafts/**"},
		Base:     "posts",
	})))
	assert.Equal(t, []string{"a"}, h.store.Keys("posts"))
}

func TestGlob_IncrementalSync(t *testing.T) {
	h := newHarness(t)
	h.write(t, "posts/a.md", "---\ntitle: A\n---\n")
	h.write(t, "posts/b.md", "---\ntitle: B\n---\n")
	h.write(t, "posts/c.md", "---\ntitle: C\n---\n")
	loader := loaders.Glob(loaders.GlobOptions{Pattern: "*.md", Base: "posts"})

	require.NoError(t, h.load(t, "posts", postSchema(), loader))
	before, _ := h.store.Get("posts", "a")

	require.NoError(t, os.Remove(filepath.Join(h.root, "posts/b.md")))
	h.write(t, "posts/c.md", "---\ntitle: 42\n---\n")
	h.write(t, "posts/d.md", "---\ntitle: D\n---\n")

	require.NoError(t, h.load(t, "posts", postSchema(), loader))

	assert.Equal(t, []string{"a", "d"}, h.store.Keys("posts"), "deleted and now-invalid sources are removed")
	after, _ := h.store.Get("posts", "a")
	assert.Equal(t, before.Digest, after.Digest)
	assert.Equal(t, 1, h.logs.Count(slog.LevelError, "skipping invalid entry"))
}

func TestGlob_DuplicateIDsAcrossFiles(t *testing.T) {
	h := newHarness(t)
	h.write(t, "posts/one.md", "---\ntitle: One\nslug: same\n---\n")
	h.write(t, "posts/two.md", "---\ntitle: Two\nslug: same\n---\n")

	require.NoError(t, h.load(t, "posts", postSchema(), loaders.Glob(loaders.GlobOptions{Pattern: "*.md", Base: "posts"})))

	same, ok := h.store.Get("posts", "same")
	require.True(t, ok)
	assert.Equal(t, "Two", same.Data["title"])
	assert.Equal(t, 1, h.logs.Count(slog.LevelWarn, `duplicate id "same"`))
}

func TestGlob_CustomIDAndEntryInfo(t *testing.T) {
	h := newHarness(t)
	h.write(t, "notes/2024/first.txt", "first note")

	loader := loaders.Glob(loaders.GlobOptions{
		Pattern: "**/*.txt",
		Base:    "notes",
		GenerateID: func(in loaders.GenerateIDInput) string {
			return "note:" + in.Entry
		},
		GetEntryInfo: func(contents []byte, fileURL *url.URL) (*loaders.EntryInfo, error) {
			return &loaders.EntryInfo{Data: map[string]any{"text": string(contents)}, Body: string(contents)}, nil
		},
	})
	require.NoError(t, h.load(t, "notes", nil, loader))

	e, ok := h.store.Get("notes", "note:2024/first.txt")
	require.True(t, ok)
	assert.Equal(t, "first note", e.Data["text"])
}

func TestGlob_RegistersBase(t *testing.T) {
	h := newHarness(t)
	w := &recordingWatcher{}
	h.opts.Watcher = w
	h.write(t, "posts/a.md", "---\ntitle: A\n---\n")

	require.NoError(t, h.load(t, "posts", postSchema(), loaders.Glob(loaders.GlobOptions{Pattern: "*.md", Base: "posts"})))
	assert.Equal(t, []string{filepath.Join(h.root, "posts")}, w.paths)
}

func TestGlob_DigestReflectsOptions(t *testing.T) {
	a := loaders.Glob(loaders.GlobOptions{Pattern: "*.md", Base: "posts"})
	b := loaders.Glob(loaders.GlobOptions{Pattern: "*.md", Base: "posts"})
	c := loaders.Glob(loaders.GlobOptions{Pattern: "**/*.md", Base: "posts"})
	assert.Equal(t, a.Digest(), b.Digest())
	assert.NotEqual(t, a.Digest(), c.Digest())
}

func TestDefaultID(t *testing.T) {
	cases := map[string]string{
		"hello.md":             "hello",
		"guides/index.md":      "guides",
		"index.md":             "index",
		"a/b/c.yaml":           "a/b/c",
		"100% done.md":         "100% done",
		"nested/index/page.md": "nested/index/page",
	}
	for in, want := range cases {
		assert.Equal(t, want, loaders.DefaultID(in), in)
	}
}
