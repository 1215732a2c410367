package regions

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is wrapped when a region file does not exist.
	ErrNotFound = errors.New("region file not found")
	// ErrCorrupt is wrapped when a region file cannot be parsed.
	ErrCorrupt = errors.New("region file corrupt")
)

// RegionStoreError describes a failed load or save.
type RegionStoreError struct {
	Op   string // "load", "save" or "backup"
	Path string
	Err  error
}

func (e *RegionStoreError) Error() string {
	return fmt.Sprintf("regions %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap exposes the cause so errors.Is matches ErrNotFound and ErrCorrupt.
func (e *RegionStoreError) Unwrap() error { return e.Err }

func storeError(op, path string, err error) error {
	return &RegionStoreError{Op: op, Path: path, Err: err}
}

func corrupt(format string, args ...interface{}) error {
	return errors.Wrapf(ErrCorrupt, format, args...)
}
