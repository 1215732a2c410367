package images

import (
	"bytes"
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/pkg/errors"
)

// ImageFormat represents supported image formats
type ImageFormat string

const (
	FormatJPEG ImageFormat = "jpeg"
	FormatPNG  ImageFormat = "png"
)

// DefaultJPEGQuality is used when callers pass a non-positive quality.
const DefaultJPEGQuality = 90

// Extensions recognised by the frame sources.
var (
	VideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".wmv", ".flv", ".webm"}
	ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".tga"}
)

// IsVideoFile reports whether the path has a supported video extension.
func IsVideoFile(path string) bool {
	return hasExtension(path, VideoExtensions)
}

// IsImageFile reports whether the path has a supported still image extension.
func IsImageFile(path string) bool {
	return hasExtension(path, ImageExtensions)
}

func hasExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// FormatFromPath picks an encoder format from a file name. Anything that is
// not a PNG is written as JPEG.
func FormatFromPath(path string) ImageFormat {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return FormatPNG
	}
	return FormatJPEG
}

// Encoder returns the bild encoder for the format.
//
// Arguments:
//   - format: The target format.
//   - quality: JPEG quality in [1, 100]; ignored for PNG.
//
// Returns:
//   - imgio.Encoder: The encoder function.
//   - error: An error if the format is unknown.
func Encoder(format ImageFormat, quality int) (imgio.Encoder, error) {
	switch format {
	case FormatJPEG:
		if quality <= 0 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		return imgio.JPEGEncoder(quality), nil
	case FormatPNG:
		return imgio.PNGEncoder(), nil
	default:
		return nil, errors.Errorf("unsupported image format: %q", format)
	}
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format ImageFormat, quality int) error {
	enc, err := Encoder(format, quality)
	if err != nil {
		return err
	}
	return errors.Wrapf(enc(w, img), "encode %s", format)
}

// EncodeBytes encodes img into an in-memory Image.
func EncodeBytes(img image.Image, format ImageFormat, quality int) (Image, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format, quality); err != nil {
		return Image{}, err
	}
	b := img.Bounds()
	return Image{Format: format, Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}

// Save writes img to path, choosing the format from the extension.
func Save(path string, img image.Image, quality int) error {
	enc, err := Encoder(FormatFromPath(path), quality)
	if err != nil {
		return err
	}
	return errors.Wrapf(imgio.Save(path, img, enc), "save %s", path)
}
