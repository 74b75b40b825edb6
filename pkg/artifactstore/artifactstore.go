// Package artifactstore writes downloaded artifacts to a local directory or
// an S3-compatible bucket.
package artifactstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrInvalidName is returned for names that do not denote a regular file
// inside the store, such as "", "." or "..".
var ErrInvalidName = errors.New("invalid artifact file name")

// Store is a write-only destination for artifact files, addressed by their
// base filename. Committing a file that already exists replaces it, so the
// last successful writer wins.
type Store interface {
	// Create starts writing the named file. Only the base name of the
	// given name is used.
	Create(name string) (Writer, error)
	// Path returns the path the named file is written to.
	Path(name string) string
}

// Writer is an artifact file being written. Nothing is visible under the
// file's name until Close returns nil.
type Writer interface {
	io.Writer
	// Close commits the written content under the file's name.
	Close() error
	// Abort discards the written content. Any earlier file under the same
	// name is left untouched. The writer must not be used afterwards.
	Abort(cause error) error
}

// NewDir returns a store that writes into the given directory, creating it
// on first use.
//
// Files are written to a hidden temporary file next to the destination and
// renamed into place on Close, so readers never see a partial artifact.
func NewDir(dir string) Store {
	return &dirStore{dir: dir}
}

type dirStore struct {
	dir      string
	mkdir    sync.Once
	mkdirErr error
}

func (s *dirStore) Create(name string) (Writer, error) {
	base, err := baseName(name)
	if err != nil {
		return nil, err
	}
	s.mkdir.Do(func() {
		s.mkdirErr = os.MkdirAll(s.dir, 0775)
	})
	if s.mkdirErr != nil {
		return nil, fmt.Errorf("create output dir: %w", s.mkdirErr)
	}
	tmp, err := os.CreateTemp(s.dir, "."+base+".*.part")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &dirWriter{tmp: tmp, dest: filepath.Join(s.dir, base)}, nil
}

func (s *dirStore) Path(name string) string {
	base, err := baseName(name)
	if err != nil {
		return filepath.Join(s.dir, name)
	}
	return filepath.Join(s.dir, base)
}

type dirWriter struct {
	tmp  *os.File
	dest string
	done bool
}

func (w *dirWriter) Write(p []byte) (int, error) {
	return w.tmp.Write(p)
}

func (w *dirWriter) Close() error {
	if w.done {
		return os.ErrClosed
	}
	w.done = true
	if err := w.tmp.Chmod(0664); err != nil {
		w.discard()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := w.tmp.Close(); err != nil {
		os.Remove(w.tmp.Name())
		return err
	}
	// Rename is atomic within a directory: concurrent writers of the same
	// name replace each other whole, never interleaved.
	if err := os.Rename(w.tmp.Name(), w.dest); err != nil {
		os.Remove(w.tmp.Name())
		return fmt.Errorf("move into place: %w", err)
	}
	return nil
}

func (w *dirWriter) Abort(error) error {
	if w.done {
		return nil
	}
	w.done = true
	return w.discard()
}

func (w *dirWriter) discard() error {
	w.tmp.Close()
	if err := os.Remove(w.tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func baseName(name string) (string, error) {
	base := filepath.Base(filepath.FromSlash(strings.TrimSpace(name)))
	switch base {
	case "", ".", "..", string(filepath.Separator):
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return base, nil
}
