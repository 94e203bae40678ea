package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// thumbPrefix is the fixed prefix for derivative artifacts.
const thumbPrefix = "thumb_"

// Store defines the interface for file storage backends.
// Objects are keyed by the server-assigned storage filename, never by the
// client-supplied name. This allows swapping filesystem for S3 or other
// backends later.
type Store interface {
	EnsureDirs() error
	Save(filename string, data io.Reader) (int64, error)
	Path(filename string) (string, error)
	Delete(filename string) error

	// ThumbPath returns the path of an existing derivative, or an error
	// when none has been generated.
	ThumbPath(filename string) (string, error)
	// ThumbTarget returns the path a derivative for filename should be
	// written to.
	ThumbTarget(filename string) string
	DeleteThumb(filename string) error
}

// FileSystemStore stores uploaded objects on the local filesystem, with
// derivatives under a thumbnails sub-directory.
type FileSystemStore struct {
	basePath string
}

// NewFileSystemStore creates a new filesystem storage backend.
func NewFileSystemStore(basePath string) *FileSystemStore {
	return &FileSystemStore{basePath: basePath}
}

// EnsureDirs creates the storage and thumbnail directories if missing.
func (fs *FileSystemStore) EnsureDirs() error {
	for _, dir := range []string{fs.basePath, fs.thumbDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory %s: %w", dir, err)
		}
	}
	return nil
}

// Save writes data from a reader to the object keyed by filename.
// Returns the number of bytes written.
func (fs *FileSystemStore) Save(filename string, data io.Reader) (int64, error) {
	filePath := fs.filePath(filename)

	file, err := os.Create(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to create file %s: %w", filePath, err)
	}
	defer file.Close()

	n, err := io.Copy(file, data)
	if err != nil {
		// Clean up partial file on error
		os.Remove(filePath)
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	return n, nil
}

// Path returns the absolute path to a stored object.
// Returns an error if the object does not exist.
func (fs *FileSystemStore) Path(filename string) (string, error) {
	filePath := fs.filePath(filename)

	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("object %s not found in store", filename)
		}
		return "", fmt.Errorf("failed to stat file: %w", err)
	}

	return filePath, nil
}

// Delete removes a stored object. Missing objects are not an error.
func (fs *FileSystemStore) Delete(filename string) error {
	filePath := fs.filePath(filename)
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file %s: %w", filePath, err)
	}
	return nil
}

// ThumbPath returns the path of an existing derivative for filename.
func (fs *FileSystemStore) ThumbPath(filename string) (string, error) {
	p := fs.ThumbTarget(filename)
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no derivative for %s", filename)
		}
		return "", fmt.Errorf("failed to stat derivative: %w", err)
	}
	return p, nil
}

// ThumbTarget returns the path a derivative for filename is written to.
func (fs *FileSystemStore) ThumbTarget(filename string) string {
	return filepath.Join(fs.thumbDir(), thumbPrefix+filename)
}

// DeleteThumb removes a derivative. Missing derivatives are not an error.
func (fs *FileSystemStore) DeleteThumb(filename string) error {
	p := fs.ThumbTarget(filename)
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete derivative %s: %w", p, err)
	}
	return nil
}

func (fs *FileSystemStore) filePath(filename string) string {
	return filepath.Join(fs.basePath, filename)
}

func (fs *FileSystemStore) thumbDir() string {
	return filepath.Join(fs.basePath, "thumbnails")
}
