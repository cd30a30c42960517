// Package modelstore persists trained detector state as gob artifacts under
// a single root directory, one artifact per logical model unit.
package modelstore

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrArtifactMissing is returned by Load when the artifact file does not
// exist. Callers treat this as "detector stays untrained", not as a failure.
var ErrArtifactMissing = errors.New("model artifact missing")

// Store reads and writes model artifacts under a root directory.
type Store struct {
	dir string
}

// New creates a Store rooted at dir. The directory is created on first Save.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the artifact root directory.
func (s *Store) Dir() string { return s.dir }

// Save gob-encodes artifact to <dir>/<name>.gob, creating the directory if
// needed. The write goes through a temp file and rename so a crash never
// leaves a truncated artifact behind.
func (s *Store) Save(name string, artifact any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create artifact temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(artifact); err != nil {
		tmp.Close()
		return fmt.Errorf("encode artifact %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		return fmt.Errorf("write artifact %s: %w", name, err)
	}
	return nil
}

// Load gob-decodes <dir>/<name>.gob into artifact. Returns ErrArtifactMissing
// when the file does not exist.
func (s *Store) Load(name string, artifact any) error {
	f, err := os.Open(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrArtifactMissing, name)
	}
	if err != nil {
		return fmt.Errorf("open artifact %s: %w", name, err)
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(artifact); err != nil {
		return fmt.Errorf("decode artifact %s: %w", name, err)
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".gob")
}
