// Package source yields frames for the occupancy pipeline from a video file,
// a camera, a single still image or a directory of numbered frames.
package source

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-parking/images"
)

// ErrUnsupported is returned for unknown source kinds and file extensions.
var ErrUnsupported = errors.New("unsupported source")

// Kind names a source implementation.
type Kind string

const (
	KindVideo     Kind = "video"
	KindCamera    Kind = "camera"
	KindImage     Kind = "image"
	KindDirectory Kind = "directory"
)

// Source produces frames in capture order. Next returns io.EOF once the
// stream is exhausted.
type Source interface {
	Next(ctx context.Context) (images.Frame, error)
	Close() error
}

// Config selects and configures a source.
type Config struct {
	// Kind of source. When empty it is inferred from Path.
	Kind Kind `yaml:"kind" json:"kind"`
	// Path to the video, image or directory.
	Path string `yaml:"path" json:"path"`
	// Device index for cameras.
	Device int `yaml:"device" json:"device"`
	// Loop restarts files and directories at the first frame when they end.
	Loop bool `yaml:"loop" json:"loop"`
	// Repeat yields a still image this many times. Zero means forever.
	Repeat int `yaml:"repeat" json:"repeat"`
}

// Infer fills Kind from the path when it is empty.
//
// Arguments:
//   - cfg: The configuration to inspect.
//
// Returns:
//   - Kind: The resolved kind.
//   - error: ErrUnsupported if the path does not identify a source.
func Infer(cfg Config) (Kind, error) {
	if cfg.Kind != "" {
		return cfg.Kind, nil
	}
	switch {
	case cfg.Path == "":
		return KindCamera, nil
	case images.IsVideoFile(cfg.Path):
		return KindVideo, nil
	case images.IsImageFile(cfg.Path):
		return KindImage, nil
	case filepath.Ext(cfg.Path) == "" || strings.HasSuffix(cfg.Path, string(filepath.Separator)):
		return KindDirectory, nil
	}
	return "", errors.Wrapf(ErrUnsupported, "cannot infer source kind for %q", cfg.Path)
}

// Open builds the source described by cfg.
func Open(cfg Config) (Source, error) {
	kind, err := Infer(cfg)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindVideo:
		if !images.IsVideoFile(cfg.Path) {
			return nil, errors.Wrapf(ErrUnsupported, "video extension %q", filepath.Ext(cfg.Path))
		}
		return OpenVideo(cfg.Path, cfg.Loop)
	case KindCamera:
		return OpenCamera(cfg.Device)
	case KindImage:
		if !images.IsImageFile(cfg.Path) {
			return nil, errors.Wrapf(ErrUnsupported, "image extension %q", filepath.Ext(cfg.Path))
		}
		return OpenStill(cfg.Path, cfg.Repeat)
	case KindDirectory:
		return OpenDirectory(cfg.Path, cfg.Loop)
	}
	return nil, errors.Wrapf(ErrUnsupported, "kind %q", kind)
}
