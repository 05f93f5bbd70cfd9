package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/starford/dagaz/internal/models"
)

// File implements Provider backed by a single JSON file.
type File struct {
	path string // absolute path to the annotations file

	// Checksum of the last content this process wrote, used by the watcher
	// to tell self-writes apart from external edits.
	lastSum atomic.Value // string
}

// NewFile creates a File provider. The parent directory must already exist;
// the file itself is created on first Save.
func NewFile(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve path: %w", err)
	}
	info, err := os.Stat(filepath.Dir(abs))
	if err != nil {
		return nil, fmt.Errorf("storage: stat dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: parent is not a directory: %s", filepath.Dir(abs))
	}
	f := &File{path: abs}
	f.lastSum.Store("")
	return f, nil
}

// Path returns the absolute path of the backing file.
func (f *File) Path() string { return f.path }

// Load reads and decodes the annotation file. A missing file is an empty
// collection, not an error; corrupt entries are dropped per-entry.
func (f *File) Load() ([]models.Annotation, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: read %s: %w", f.path, err)
	}
	return models.DecodeList(data)
}

// Save atomically writes the collection: tmp file → fsync → rename.
func (f *File) Save(annotations []models.Annotation) error {
	data, err := models.EncodeList(annotations)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".dagaz-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	f.lastSum.Store(checksum(data))
	return nil
}

// SelfWrite reports whether the file's current content matches the last Save
// from this process, i.e. a change event for it is an echo of our own write.
func (f *File) SelfWrite() bool {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return false
	}
	return checksum(data) == f.lastSum.Load().(string)
}

func checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
