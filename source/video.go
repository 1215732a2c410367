package source

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-parking/cv"
	"github.com/nvr-ai/go-parking/images"
)

// VideoInfo describes an open capture.
type VideoInfo struct {
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	FPS          float64 `json:"fps"`
	FrameCount   int     `json:"frame_count"`
	CurrentFrame int     `json:"current_frame"`
}

// Video reads frames from a video file or camera through OpenCV.
//
// Always call Close() when done to release the capture.
type Video struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	img     gocv.Mat
	name    string
	file    bool
	loop    bool
	seq     int
}

// OpenVideo opens a video file.
//
// Arguments:
//   - path: The video file.
//   - loop: Seek back to the first frame when the file ends.
//
// Returns:
//   - *Video: The source.
//   - error: An error if OpenCV cannot open the file.
//
// @example
// v, err := source.OpenVideo("lot.mp4", true)
// if err != nil {
//     return err
// }
// defer v.Close()
func OpenVideo(path string, loop bool) (*Video, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open video %s", path)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, errors.Errorf("open video %s: capture not opened", path)
	}
	return &Video{capture: capture, img: gocv.NewMat(), name: path, file: true, loop: loop}, nil
}

// OpenCamera opens a capture device by index.
func OpenCamera(device int) (*Video, error) {
	capture, err := gocv.VideoCaptureDevice(device)
	if err != nil {
		return nil, errors.Wrapf(err, "open camera %d", device)
	}
	return &Video{capture: capture, img: gocv.NewMat(), name: "camera"}, nil
}

// Next reads the next frame. Files that end return io.EOF, or restart at
// frame 0 when looping.
func (v *Video) Next(ctx context.Context) (images.Frame, error) {
	if err := ctx.Err(); err != nil {
		return images.Frame{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.capture == nil {
		return images.Frame{}, errors.New("video source closed")
	}

	ok := v.capture.Read(&v.img)
	if (!ok || v.img.Empty()) && v.file && v.loop {
		v.capture.Set(gocv.VideoCapturePosFrames, 0)
		ok = v.capture.Read(&v.img)
	}
	if !ok || v.img.Empty() {
		if v.file {
			return images.Frame{}, io.EOF
		}
		return images.Frame{}, errors.Errorf("cannot read %s", v.name)
	}

	f, err := cv.MatToFrame(v.img)
	if err != nil {
		return images.Frame{}, err
	}
	f.ID = v.seq
	v.seq++
	return f, nil
}

// Info reports the capture geometry and position.
func (v *Video) Info() VideoInfo {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.capture == nil {
		return VideoInfo{}
	}
	return VideoInfo{
		Width:        int(v.capture.Get(gocv.VideoCaptureFrameWidth)),
		Height:       int(v.capture.Get(gocv.VideoCaptureFrameHeight)),
		FPS:          v.capture.Get(gocv.VideoCaptureFPS),
		FrameCount:   int(v.capture.Get(gocv.VideoCaptureFrameCount)),
		CurrentFrame: int(v.capture.Get(gocv.VideoCapturePosFrames)),
	}
}

// Seek moves a file capture to frame n.
func (v *Video) Seek(n int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.capture == nil {
		return errors.New("video source closed")
	}
	if !v.file {
		return errors.New("cannot seek a camera")
	}
	if n < 0 {
		return errors.Errorf("invalid frame %d", n)
	}
	v.capture.Set(gocv.VideoCapturePosFrames, float64(n))
	return nil
}

// Close releases the capture.
func (v *Video) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.capture == nil {
		return nil
	}
	err := v.capture.Close()
	v.img.Close()
	v.capture = nil
	return err
}

var _ Source = (*Video)(nil)
