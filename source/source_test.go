package source

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-parking/cv"
	"github.com/nvr-ai/go-parking/images"
)

func writePNG(t *testing.T, path string, shade uint8) {
	t.Helper()
	f := images.NewFrame(16, 8)
	f.Fill(f.Bounds(), shade, shade, shade)
	require.NoError(t, images.Save(path, f.ToRGBA(), 0))
}

func TestInfer(t *testing.T) {
	tests := []struct {
		cfg  Config
		want Kind
		err  bool
	}{
		{cfg: Config{Path: "lot.mp4"}, want: KindVideo},
		{cfg: Config{Path: "lot.MKV"}, want: KindVideo},
		{cfg: Config{Path: "lot.jpg"}, want: KindImage},
		{cfg: Config{Path: "frames"}, want: KindDirectory},
		{cfg: Config{}, want: KindCamera},
		{cfg: Config{Kind: KindCamera, Path: "ignored.txt"}, want: KindCamera},
		{cfg: Config{Path: "notes.txt"}, err: true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.cfg.Kind, tt.cfg.Path), func(t *testing.T) {
			got, err := Infer(tt.cfg)
			if tt.err {
				assert.ErrorIs(t, err, ErrUnsupported)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenRejectsWrongExtensions(t *testing.T) {
	_, err := Open(Config{Kind: KindImage, Path: "clip.mp4"})
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Open(Config{Kind: KindVideo, Path: "still.png"})
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Open(Config{Kind: "plotter"})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestStill(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lot.png")
	writePNG(t, path, 90)

	src, err := Open(Config{Path: path, Repeat: 2})
	require.NoError(t, err)
	defer src.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		f, err := src.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, f.ID)
		assert.Equal(t, 16, f.Width)
		b, g, r := f.At(3, 3)
		assert.Equal(t, [3]uint8{90, 90, 90}, [3]uint8{b, g, r})
		assert.False(t, f.Timestamp.IsZero())
	}
	_, err = src.Next(ctx)
	assert.Equal(t, io.EOF, err)

	_, err = OpenStill(filepath.Join(t.TempDir(), "missing.png"), 1)
	assert.Error(t, err)
}

func TestStillForeverAndCancel(t *testing.T) {
	s := NewStill(images.NewFrame(4, 4), 0)
	for i := 0; i < 10; i++ {
		_, err := s.Next(context.Background())
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestListFrameFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame-10.png", "frame-2.png", "frame-1.png", "cover.png"} {
		writePNG(t, filepath.Join(dir, name), 10)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))

	files, err := ListFrameFiles(dir)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f.Path))
	}
	assert.Equal(t, []string{"frame-1.png", "frame-2.png", "frame-10.png", "cover.png"}, names)
	assert.Equal(t, -1, files[3].Frame)

	_, err = ListFrameFiles(filepath.Join(dir, "nope"))
	assert.Error(t, err)
}

func TestDirectory(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "frame-3.png"), 30)
	writePNG(t, filepath.Join(dir, "frame-7.png"), 70)

	src, err := Open(Config{Kind: KindDirectory, Path: dir, Loop: true})
	require.NoError(t, err)
	defer src.Close()

	var ids []int
	var shades []uint8
	for i := 0; i < 5; i++ {
		f, err := src.Next(context.Background())
		require.NoError(t, err)
		ids = append(ids, f.ID)
		b, _, _ := f.At(0, 0)
		shades = append(shades, b)
	}
	assert.Equal(t, []int{3, 7, 3, 7, 3}, ids)
	assert.Equal(t, []uint8{30, 70, 30, 70, 30}, shades)

	once, err := OpenDirectory(dir, false)
	require.NoError(t, err)
	assert.Equal(t, 2, once.Len())
	for i := 0; i < 2; i++ {
		_, err := once.Next(context.Background())
		require.NoError(t, err)
	}
	_, err = once.Next(context.Background())
	assert.Equal(t, io.EOF, err)

	_, err = OpenDirectory(t.TempDir(), false)
	assert.Error(t, err)
}

// writeClip records a short MJPG clip, skipping when the OpenCV build has no
// writer for it.
func writeClip(t *testing.T, frames int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.avi")
	w, err := gocv.VideoWriterFile(path, "MJPG", 10, 32, 24, true)
	if err != nil || !w.IsOpened() {
		t.Skip("OpenCV has no MJPG writer")
	}
	for i := 0; i < frames; i++ {
		f := images.NewFrame(32, 24)
		f.Fill(image.Rect(0, 0, 32, 24), uint8(i*40), 0, 0)
		mat, err := cv.FrameToMat(f)
		require.NoError(t, err)
		require.NoError(t, w.Write(mat))
		mat.Close()
	}
	require.NoError(t, w.Close())
	return path
}

func TestVideo(t *testing.T) {
	path := writeClip(t, 3)

	v, err := OpenVideo(path, false)
	require.NoError(t, err)
	defer v.Close()

	info := v.Info()
	assert.Equal(t, 32, info.Width)
	assert.Equal(t, 24, info.Height)

	n := 0
	for {
		f, err := v.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, n, f.ID)
		n++
	}
	assert.Equal(t, 3, n)

	require.NoError(t, v.Seek(1))
	_, err = v.Next(context.Background())
	require.NoError(t, err)
	assert.Error(t, v.Seek(-1))

	require.NoError(t, v.Close())
	require.NoError(t, v.Close())
	_, err = v.Next(context.Background())
	assert.Error(t, err)
}

func TestVideoLoop(t *testing.T) {
	path := writeClip(t, 2)

	v, err := OpenVideo(path, true)
	require.NoError(t, err)
	defer v.Close()

	for i := 0; i < 5; i++ {
		_, err := v.Next(context.Background())
		require.NoError(t, err)
	}

	_, err = OpenVideo(filepath.Join(t.TempDir(), "missing.mp4"), false)
	assert.Error(t, err)
}
