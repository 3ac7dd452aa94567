package core

import "errors"

// Common errors.
var (
	// ErrConfig marks a configuration that cannot be resolved or is invalid.
	ErrConfig = errors.New("invalid content configuration")
	// ErrLoader marks a sync pass where at least one loader failed.
	ErrLoader = errors.New("loader failed")
	// ErrInvalidData is wrapped by schema validation failures.
	ErrInvalidData = errors.New("data does not match collection schema")
	// ErrInvalidID is returned when an entry id is empty.
	ErrInvalidID = errors.New("entry id must be a non-empty string")
	// ErrInvalidDocument is returned when a persisted document cannot be decoded.
	ErrInvalidDocument = errors.New("invalid data store document")
	// ErrPersist marks a failure writing the data store document.
	ErrPersist = errors.New("failed to persist data store")
	// ErrNoRenderer is returned by RenderMarkdown when no renderer is configured.
	ErrNoRenderer = errors.New("no markdown renderer configured")
	// ErrNotFound is returned when reading an entry that does not exist.
	ErrNotFound = errors.New("entry not found")
	// ErrClosed is returned when using a content layer after Shutdown.
	ErrClosed = errors.New("content layer is shut down")
)
