package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/muurk/photorelay/internal/logging"
	"github.com/muurk/photorelay/internal/relayerr"
	"go.uber.org/zap"
)

// DefaultExtension is appended to generated file names when none is configured
const DefaultExtension = "png"

// DiskStore writes each uploaded image to its own file in a directory and
// hands out the generated file name as the image reference.
type DiskStore struct {
	dir string
	ext string

	// now is overridable in tests
	now func() time.Time
}

// NewDiskStore creates a store rooted at dir, creating the directory if needed.
// ext is the file extension without the leading dot; empty means DefaultExtension.
func NewDiskStore(dir, ext string) (*DiskStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = DefaultExtension
	}

	return &DiskStore{
		dir: dir,
		ext: ext,
		now: time.Now,
	}, nil
}

// Dir returns the storage directory
func (s *DiskStore) Dir() string {
	return s.dir
}

// Put writes data to a new file and returns its name.
//
// The bytes go to a temporary file first and are renamed into place after
// an fsync, so a returned name always refers to a complete file.
func (s *DiskStore) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := s.generateName()

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", relayerr.NewStorageError("failed to create temp file", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return "", relayerr.NewStorageError("failed to write image", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", relayerr.NewStorageError("failed to flush image", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", relayerr.NewStorageError("failed to close image file", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmpPath)
		return "", relayerr.NewStorageError("failed to move image into place", err)
	}

	logging.Debug("Image written to disk",
		zap.String("name", name),
		zap.String("dir", s.dir),
		zap.Int("bytes", len(data)),
	)
	return name, nil
}

// GetByName reads the image previously returned by Put.
// Only plain file names inside the storage directory are served.
func (s *DiskStore) GetByName(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !isPlainName(name) {
		return nil, relayerr.NewNotFoundError(fmt.Sprintf("image %q not found", name))
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, relayerr.NewNotFoundError(fmt.Sprintf("image %q not found", name))
		}
		return nil, relayerr.NewStorageError(fmt.Sprintf("failed to read image %q", name), err)
	}
	return data, nil
}

// generateName returns img-<timestamp>-<random>.<ext>
func (s *DiskStore) generateName() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("img-%s-%s.%s", s.now().UTC().Format("20060102-150405"), suffix, s.ext)
}

// isPlainName rejects empty names, hidden files (including in-flight temp
// files), path separators and parent references.
func isPlainName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return filepath.Base(name) == name
}
