package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-parking/controller"
	"github.com/nvr-ai/go-parking/images"
)

// Snapshotter saves every Nth annotated frame and a thumbnail of it.
type Snapshotter struct {
	// Dir receives the files.
	Dir string
	// Every saves one frame out of this many. Values below 1 save every frame.
	Every int
	// ThumbnailWidth of the scaled copy; zero skips the thumbnail.
	ThumbnailWidth int
	// Quality is the JPEG quality.
	Quality int
}

// NewSnapshotter creates dir if needed.
func NewSnapshotter(dir string, every, thumbnailWidth int) (*Snapshotter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create snapshot dir %s", dir)
	}
	return &Snapshotter{Dir: dir, Every: every, ThumbnailWidth: thumbnailWidth, Quality: images.DefaultJPEGQuality}, nil
}

// Save writes the result's annotated frame, or its input frame without an
// overlay, when its sequence number is due.
//
// Arguments:
//   - res: The pipeline result.
//
// Returns:
//   - []string: The written paths, empty when the frame was not due.
//   - error: An error if encoding or writing fails.
func (s *Snapshotter) Save(res controller.Result) ([]string, error) {
	if res.Err != nil {
		return nil, nil
	}
	if s.Every > 1 && res.Seq%s.Every != 0 {
		return nil, nil
	}

	frame := res.Annotated
	if frame.Validate() != nil {
		frame = res.Frame
	}
	if err := frame.Validate(); err != nil {
		return nil, err
	}

	session := res.Session
	if len(session) > 8 {
		session = session[:8]
	}
	base := filepath.Join(s.Dir, fmt.Sprintf("%s_frame-%06d", session, res.Seq))

	img := frame.ToRGBA()
	paths := []string{base + ".jpg"}
	if err := images.Save(paths[0], img, s.Quality); err != nil {
		return nil, err
	}

	if s.ThumbnailWidth > 0 {
		thumb, err := images.ResizeWidth(img, s.ThumbnailWidth)
		if err != nil {
			return paths, err
		}
		p := base + "_thumb.jpg"
		if err := images.Save(p, thumb, s.Quality); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
