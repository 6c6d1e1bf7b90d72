// Package source declares the consumed data-source capability that the
// pipeline's Collector pulls bytes from. Concrete connectors (S3, Azure,
// GCS, OneDrive, Drive, Slack, Jira, Email) are out of scope; fsSource is
// the one concrete implementation provided, over the local filesystem.
package source

import "context"

// CollectedBytes is a single chunk pulled from a source, tagged with enough
// provenance for the pipeline to attribute downstream events back to it.
type CollectedBytes struct {
	Data      []byte
	File      string
	DocSource string
	Extension string
	Size      int64
	SourceID  string
	EOF       bool
}

// Source is the capability interface a Collector actor drives.
type Source interface {
	// CheckConnectivity verifies the source is reachable before a
	// pipeline starts pulling from it.
	CheckConnectivity(ctx context.Context) error

	// PollData returns a channel of CollectedBytes; the final element
	// has EOF set to true. The channel is closed after EOF or when ctx
	// is cancelled.
	PollData(ctx context.Context) (<-chan CollectedBytes, error)

	// GetSlice reads a byte range from a named file within the source.
	GetSlice(ctx context.Context, file string, offset, length int64) ([]byte, error)

	// GetAll reads an entire named file.
	GetAll(ctx context.Context, file string) ([]byte, error)

	// FileNumBytes returns the size of a named file.
	FileNumBytes(ctx context.Context, file string) (int64, error)

	// CopyTo copies a named file's contents to an io.Writer-like
	// destination, identified by destination path. The destination is a
	// path rather than an io.Writer so the interface stays agnostic to
	// whether the destination is local or itself another source.
	CopyTo(ctx context.Context, file, destPath string) error
}
