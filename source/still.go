package source

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/nvr-ai/go-parking/images"
)

// Still yields one decoded image, once or a fixed number of times.
type Still struct {
	mu     sync.Mutex
	frame  images.Frame
	repeat int
	served int
}

// OpenStill decodes the image at path with EXIF auto-orientation.
//
// Arguments:
//   - path: The image file.
//   - repeat: How many frames to yield. Zero repeats forever.
//
// Returns:
//   - *Still: The source.
//   - error: An error if the image cannot be decoded.
func OpenStill(path string, repeat int) (*Still, error) {
	f, err := images.Load(path)
	if err != nil {
		return nil, err
	}
	return NewStill(f, repeat), nil
}

// NewStill serves an already decoded frame.
func NewStill(f images.Frame, repeat int) *Still {
	return &Still{frame: f, repeat: repeat}
}

// Next returns a copy of the image stamped with the current time.
func (s *Still) Next(ctx context.Context) (images.Frame, error) {
	if err := ctx.Err(); err != nil {
		return images.Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repeat > 0 && s.served >= s.repeat {
		return images.Frame{}, io.EOF
	}
	out := s.frame.Clone()
	out.ID = s.served
	out.Timestamp = time.Now()
	s.served++
	return out, nil
}

func (s *Still) Close() error { return nil }

var _ Source = (*Still)(nil)
