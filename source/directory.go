package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-parking/images"
)

// FrameFile is one image in a frame directory.
type FrameFile struct {
	// Path is the path to the image file.
	Path string
	// Frame is the number parsed from a "frame-N" name, or -1.
	Frame int
}

// ListFrameFiles returns the image files of a directory in playback order:
// "frame-N" files by N, then any other images by name.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []FrameFile: The files in order.
//   - error: Error if the directory cannot be read.
func ListFrameFiles(dir string) ([]FrameFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read frame directory %s", dir)
	}

	var files []FrameFile
	for _, entry := range entries {
		if entry.IsDir() || !images.IsImageFile(entry.Name()) {
			continue
		}
		ext := filepath.Ext(entry.Name())
		n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSuffix(entry.Name(), ext), "frame-"))
		if err != nil || n < 0 {
			n = -1
		}
		files = append(files, FrameFile{Path: filepath.Join(dir, entry.Name()), Frame: n})
	}

	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		switch {
		case a.Frame >= 0 && b.Frame >= 0:
			return a.Frame < b.Frame
		case a.Frame >= 0:
			return true
		case b.Frame >= 0:
			return false
		}
		return a.Path < b.Path
	})
	return files, nil
}

// Directory decodes a directory of frames one file per Next call.
type Directory struct {
	mu    sync.Mutex
	files []FrameFile
	loop  bool
	pos   int
	seq   int
}

// OpenDirectory lists the frames under dir.
func OpenDirectory(dir string, loop bool) (*Directory, error) {
	files, err := ListFrameFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no image files in %s", dir)
	}
	return &Directory{files: files, loop: loop}, nil
}

// Len returns the number of frame files.
func (d *Directory) Len() int { return len(d.files) }

// Next decodes the next file. The frame ID is the parsed frame number when
// the file has one, otherwise the running sequence number.
func (d *Directory) Next(ctx context.Context) (images.Frame, error) {
	if err := ctx.Err(); err != nil {
		return images.Frame{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pos >= len(d.files) {
		if !d.loop {
			return images.Frame{}, io.EOF
		}
		d.pos = 0
	}
	file := d.files[d.pos]
	d.pos++

	f, err := images.Load(file.Path)
	if err != nil {
		return images.Frame{}, err
	}
	f.ID = d.seq
	if file.Frame >= 0 {
		f.ID = file.Frame
	}
	f.Timestamp = time.Now()
	d.seq++
	return f, nil
}

func (d *Directory) Close() error { return nil }

var _ Source = (*Directory)(nil)
