// Package fsSource implements source.Source over a local filesystem
// directory tree. It is the one concrete connector this repository ships;
// every cloud connector the original system supports (S3, Azure, GCS,
// OneDrive, Drive, Slack, Jira, Email) is a Non-goal and represented only
// by the source.Source interface.
package fsSource

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/latticeforge/veridian/internal/source"
)

// Config configures a filesystem source.
type Config struct {
	// RootDir is the directory walked for files to collect.
	RootDir string

	// SourceID identifies this source instance in emitted
	// CollectedBytes; if empty, a random id is generated.
	SourceID string

	// ChunkSize bounds how many bytes PollData reads per CollectedBytes
	// element for any single file.
	ChunkSize int
}

// FSSource is a source.Source backed by a local directory tree.
type FSSource struct {
	cfg Config
}

// New creates a filesystem source rooted at cfg.RootDir.
func New(cfg Config) *FSSource {
	if cfg.SourceID == "" {
		cfg.SourceID = uuid.NewString()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1 << 20
	}

	return &FSSource{cfg: cfg}
}

var _ source.Source = (*FSSource)(nil)

// CheckConnectivity verifies the root directory exists and is readable.
func (s *FSSource) CheckConnectivity(_ context.Context) error {
	info, err := os.Stat(s.cfg.RootDir)
	if err != nil {
		return fmt.Errorf("checking root dir %s: %w", s.cfg.RootDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root %s is not a directory", s.cfg.RootDir)
	}

	return nil
}

// PollData walks the root directory, emitting CollectedBytes for every
// regular file found, chunked to cfg.ChunkSize. The final chunk of the
// final file carries EOF.
func (s *FSSource) PollData(ctx context.Context) (<-chan source.CollectedBytes, error) {
	var files []string
	err := filepath.WalkDir(s.cfg.RootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", s.cfg.RootDir, err)
	}

	out := make(chan source.CollectedBytes)

	go func() {
		defer close(out)

		for fi, path := range files {
			if err := s.emitFile(ctx, out, path, fi == len(files)-1); err != nil {
				return
			}
		}
	}()

	return out, nil
}

func (s *FSSource) emitFile(
	ctx context.Context, out chan<- source.CollectedBytes, path string,
	isLastFile bool,
) error {

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	rel, err := filepath.Rel(s.cfg.RootDir, path)
	if err != nil {
		rel = path
	}

	buf := make([]byte, s.cfg.ChunkSize)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			atEOF := isLastFile && (readErr == io.EOF)

			chunk := source.CollectedBytes{
				Data:      append([]byte(nil), buf[:n]...),
				File:      rel,
				DocSource: "fs://" + s.cfg.RootDir,
				Extension: strings.TrimPrefix(filepath.Ext(path), "."),
				Size:      info.Size(),
				SourceID:  s.cfg.SourceID,
				EOF:       atEOF,
			}

			select {
			case out <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if readErr == io.EOF {
			if isLastFile {
				return nil
			}
			// Non-final files still need a terminal signal for
			// their own bytes, but EOF is reserved for the very
			// last chunk of the very last file per the source
			// interface's single end-of-stream marker.
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("reading %s: %w", path, readErr)
		}
	}
}

// GetSlice reads length bytes starting at offset from a named file.
func (s *FSSource) GetSlice(
	_ context.Context, file string, offset, length int64,
) ([]byte, error) {

	f, err := os.Open(filepath.Join(s.cfg.RootDir, file))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", file, err)
	}
	defer f.Close()

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading slice of %s: %w", file, err)
	}

	return buf[:n], nil
}

// GetAll reads an entire named file.
func (s *FSSource) GetAll(_ context.Context, file string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.cfg.RootDir, file))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}

	return data, nil
}

// FileNumBytes returns the size of a named file.
func (s *FSSource) FileNumBytes(_ context.Context, file string) (int64, error) {
	info, err := os.Stat(filepath.Join(s.cfg.RootDir, file))
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", file, err)
	}

	return info.Size(), nil
}

// CopyTo copies a named file's contents to destPath.
func (s *FSSource) CopyTo(_ context.Context, file, destPath string) error {
	src, err := os.Open(filepath.Join(s.cfg.RootDir, file))
	if err != nil {
		return fmt.Errorf("opening %s: %w", file, err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copying %s to %s: %w", file, destPath, err)
	}

	return nil
}
