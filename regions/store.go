package regions

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Store loads and saves a region list.
type Store interface {
	Load() ([]Region, error)
	Save(rs []Region) error
}

// Open picks a store from the file extension: .json files use the JSON
// format, everything else the legacy pickle.
func Open(path string) Store {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return NewJSONStore(path)
	}
	return NewLegacyStore(path)
}

// Load reads path with the store Open picks. When a non-JSON file fails to
// decode as a pickle it is retried as JSON, so a JSON file with another
// extension still loads.
func Load(path string) ([]Region, error) {
	rs, err := Open(path).Load()
	if err == nil || errors.Is(err, ErrNotFound) {
		return rs, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return nil, err
	}
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, err
	}
	if fallback, _, jsonErr := decodeJSON(data); jsonErr == nil {
		return fallback, nil
	}
	return nil, err
}

// Backup copies path to <path>.backup_YYYYmmdd_HHMMSS and returns the new
// path. A missing source returns "" and no error.
func Backup(path string) (string, error) {
	return backupAt(path, time.Now())
}

func backupAt(path string, now time.Time) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", storeError("backup", path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", storeError("backup", path, err)
	}

	dst := path + ".backup_" + now.Format("20060102_150405")
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return "", storeError("backup", path, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", storeError("backup", path, err)
	}
	if err := out.Close(); err != nil {
		return "", storeError("backup", path, err)
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return "", storeError("backup", path, err)
	}
	return dst, nil
}

// writeFile replaces path atomically through a temp file in the same directory.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return errors.Wrap(err, "chmod")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "rename")
}

func notFound(err error) error {
	if os.IsNotExist(err) {
		return errors.Wrap(ErrNotFound, err.Error())
	}
	return err
}
