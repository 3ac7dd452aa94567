// Package core holds the domain model of the content layer: entries, references,
// the loader contract and the collaborator interfaces the engine talks to.
package core

import (
	"fmt"
	"time"
)

// Data is the schema-validated payload of an entry.
type Data = map[string]any

// Entry is the atomic unit of content stored in a collection.
type Entry struct {
	ID         string
	Collection string
	Data       Data
	// Body holds the raw source (e.g. unprocessed markdown) when the loader retains it.
	Body string
	// FilePath is the provenance of file-backed entries, relative to the project root.
	FilePath string
	// Digest is an opaque hash of the source the entry was built from.
	Digest         string
	Rendered       *Rendered
	DeferredRender bool
	AssetImports   []string
}

// Reference is a typed pointer to an entry in another collection.
// It is structural only: the target is not checked when the entry is written.
type Reference struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

func (r Reference) String() string {
	return r.Collection + ":" + r.ID
}

// Heading is a heading extracted while rendering markdown.
type Heading struct {
	Depth int    `json:"depth"`
	Slug  string `json:"slug,omitempty"`
	Text  string `json:"text"`
}

// RenderMetadata accompanies rendered HTML.
type RenderMetadata struct {
	Headings         []Heading      `json:"headings,omitempty"`
	Frontmatter      map[string]any `json:"frontmatter,omitempty"`
	LocalImagePaths  []string       `json:"localImagePaths,omitempty"`
	RemoteImagePaths []string       `json:"remoteImagePaths,omitempty"`
}

// Rendered is a pre-computed render artifact.
type Rendered struct {
	HTML     string         `json:"html"`
	Metadata RenderMetadata `json:"metadata"`
}

// SyncEventType is the kind of a SyncEvent.
type SyncEventType string

const (
	SyncStarted   SyncEventType = "sync-start"
	SyncCompleted SyncEventType = "sync-complete"
	SyncFailed    SyncEventType = "sync-failed"
)

// SyncEvent reports the progress of a sync pass.
type SyncEvent struct {
	Type        SyncEventType
	RunID       string
	Collections []string
	Duration    time.Duration
	Err         error
	Timestamp   int64 // Unix timestamp
}

func (e SyncEvent) String() string {
	if e.Err != nil {
		return fmt.Sprintf("%s run=%s error=%v", e.Type, e.RunID, e.Err)
	}
	return fmt.Sprintf("%s run=%s collections=%d duration=%s", e.Type, e.RunID, len(e.Collections), e.Duration)
}
