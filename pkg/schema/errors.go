package schema

import (
	"fmt"
	"strings"

	"github.com/aretw0/contentlayer/pkg/core"
)

// Issue is a single validation failure.
type Issue struct {
	// Path is the dotted location of the value, empty for the root.
	Path    string
	Message string
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// ValidationError groups every issue found for one entry.
type ValidationError struct {
	Collection string
	ID         string
	FilePath   string
	Issues     []Issue
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid data for entry %q in collection %q", e.ID, e.Collection)
	if e.FilePath != "" {
		fmt.Fprintf(&b, " (%s)", e.FilePath)
	}
	b.WriteString(":")
	for _, issue := range e.Issues {
		b.WriteString("\n  ")
		b.WriteString(issue.String())
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error {
	return core.ErrInvalidData
}
