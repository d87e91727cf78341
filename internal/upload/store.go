// Package upload persists uploaded images under unique names and removes them
// once their retention period is over.
package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/Brownie44l1/plant-disease-api/internal/errors"
	"github.com/Brownie44l1/plant-disease-api/internal/logger"
)

// FileExt is appended to every stored upload regardless of the real format.
const FileExt = ".jpg"

// ErrInsufficientStorage is returned when free disk space is below the configured floor.
var ErrInsufficientStorage = errors.NewStd("insufficient storage for upload")

// Config controls the upload store.
type Config struct {
	Dir string
	// Retention is how long a file is kept after Release. Zero deletes it at once.
	Retention time.Duration
	// MinFreeBytes rejects uploads when the filesystem has less free space. Zero disables the check.
	MinFreeBytes uint64
}

// Store writes uploads to disk.
type Store struct {
	dir          string
	minFreeBytes uint64
	retained     *cache.Cache
	log          logger.Logger

	// freeSpace is swapped in tests.
	freeSpace func(path string) (uint64, error)
}

// New creates the upload directory if needed.
func New(cfg Config, log logger.Logger) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.Newf("upload directory is not set").
			Component("upload").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.New(fmt.Errorf("could not create upload directory: %w", err)).
			Component("upload").
			Category(errors.CategoryFileIO).
			Context("dir", cfg.Dir).
			Build()
	}
	if log == nil {
		log = logger.NewDiscard()
	}

	s := &Store{
		dir:          cfg.Dir,
		minFreeBytes: cfg.MinFreeBytes,
		log:          log,
		freeSpace:    diskFree,
	}

	if cfg.Retention > 0 {
		cleanup := cfg.Retention / 2
		if cleanup < time.Second {
			cleanup = time.Second
		}
		s.retained = cache.New(cfg.Retention, cleanup)
		s.retained.OnEvicted(func(path string, _ any) {
			s.remove(path)
		})
	}

	return s, nil
}

func diskFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// Dir returns the upload directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save streams r into a new file named <uuid>.jpg and returns its path.
func (s *Store) Save(r io.Reader) (string, error) {
	if err := s.checkFreeSpace(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, uuid.New().String()+FileExt)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.New(fmt.Errorf("could not create upload file: %w", err)).
			Component("upload").
			Category(errors.CategoryFileIO).
			Build()
	}

	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		s.remove(path)
		return "", errors.New(fmt.Errorf("could not write upload file: %w", err)).
			Component("upload").
			Category(errors.CategoryFileIO).
			Context("bytes_written", n).
			Build()
	}

	s.log.Debug("Upload saved", logger.String("path", path), logger.Int64("bytes", n))
	return path, nil
}

func (s *Store) checkFreeSpace() error {
	if s.minFreeBytes == 0 {
		return nil
	}
	free, err := s.freeSpace(s.dir)
	if err != nil {
		// Free space unknown: accept the upload.
		s.log.Warn("Could not read free disk space", logger.Error(err))
		return nil
	}
	if free < s.minFreeBytes {
		return errors.New(ErrInsufficientStorage).
			Component("upload").
			Category(errors.CategoryStorage).
			Context("free_bytes", free).
			Context("min_free_bytes", s.minFreeBytes).
			Build()
	}
	return nil
}

// Release marks path as no longer needed by the request that created it.
func (s *Store) Release(path string) {
	if path == "" {
		return
	}
	if s.retained == nil {
		s.remove(path)
		return
	}
	s.retained.SetDefault(path, struct{}{})
}

// Pending returns how many released files are still kept for retention.
func (s *Store) Pending() int {
	if s.retained == nil {
		return 0
	}
	return s.retained.ItemCount()
}

// Close deletes every file still held for retention.
func (s *Store) Close() error {
	if s.retained == nil {
		return nil
	}
	for path := range s.retained.Items() {
		s.retained.Delete(path)
	}
	return nil
}

func (s *Store) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.log.Warn("Failed to remove upload", logger.String("path", path), logger.Error(err))
	}
}
