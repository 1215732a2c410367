package images

import (
	"fmt"
	"math"
	"sort"
)

// AspectRatio represents a camera aspect ratio by name (e.g., "16:9").
type AspectRatio string

const (
	AspectRatio169 AspectRatio = "16:9"
	AspectRatio32  AspectRatio = "3:2"
	AspectRatio43  AspectRatio = "4:3"
	AspectRatio54  AspectRatio = "5:4"
)

// ResolutionType represents a common name for a camera resolution.
type ResolutionType string

// Resolutions seen on parking-lot cameras, from analogue D1 up to 4K.
const (
	ResolutionTypeD1       ResolutionType = "D1"
	ResolutionTypeNHD      ResolutionType = "nHD"
	ResolutionTypeVGA      ResolutionType = "VGA"
	ResolutionTypeQHD540   ResolutionType = "qHD 540p"
	ResolutionTypeHD720p   ResolutionType = "HD 720p"
	ResolutionType1MP54    ResolutionType = "1MP (5:4)"
	ResolutionTypeFHD1080p ResolutionType = "Full HD 1080p"
	ResolutionType2MP43    ResolutionType = "2MP (4:3)"
	ResolutionType3MP43    ResolutionType = "3MP (4:3)"
	ResolutionTypeQHD1440p ResolutionType = "QHD 1440p"
	ResolutionType6MP32    ResolutionType = "6MP (3:2)"
	ResolutionType4KUHD    ResolutionType = "4K UHD"
)

// ResolutionPixels describes the exact dimensions of a resolution.
type ResolutionPixels struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Resolution describes a camera resolution standard.
type Resolution struct {
	Name        ResolutionType   `json:"name" yaml:"name"`
	AspectRatio AspectRatio      `json:"aspectRatio" yaml:"aspectRatio"`
	Pixels      ResolutionPixels `json:"pixels" yaml:"pixels"`
}

// MegaPixels returns the pixel count in millions rounded to two decimals
// (e.g., 2.07 for 1080p).
func (r Resolution) MegaPixels() float64 {
	if r.Pixels.Width <= 0 || r.Pixels.Height <= 0 {
		return 0.0
	}
	mp := float64(r.Pixels.Width*r.Pixels.Height) / 1_000_000.0
	return math.Round(mp*100) / 100
}

// String returns a human-readable summary of the resolution.
func (r Resolution) String() string {
	return fmt.Sprintf("%s (%dx%d, %.2fMP)", r.Name, r.Pixels.Width, r.Pixels.Height, r.MegaPixels())
}

var resolutions = map[ResolutionType]Resolution{
	ResolutionTypeD1:       {ResolutionTypeD1, AspectRatio32, ResolutionPixels{720, 480}},
	ResolutionTypeNHD:      {ResolutionTypeNHD, AspectRatio169, ResolutionPixels{640, 360}},
	ResolutionTypeVGA:      {ResolutionTypeVGA, AspectRatio43, ResolutionPixels{640, 480}},
	ResolutionTypeQHD540:   {ResolutionTypeQHD540, AspectRatio169, ResolutionPixels{960, 540}},
	ResolutionTypeHD720p:   {ResolutionTypeHD720p, AspectRatio169, ResolutionPixels{1280, 720}},
	ResolutionType1MP54:    {ResolutionType1MP54, AspectRatio54, ResolutionPixels{1280, 1024}},
	ResolutionTypeFHD1080p: {ResolutionTypeFHD1080p, AspectRatio169, ResolutionPixels{1920, 1080}},
	ResolutionType2MP43:    {ResolutionType2MP43, AspectRatio43, ResolutionPixels{1600, 1200}},
	ResolutionType3MP43:    {ResolutionType3MP43, AspectRatio43, ResolutionPixels{2048, 1536}},
	ResolutionTypeQHD1440p: {ResolutionTypeQHD1440p, AspectRatio169, ResolutionPixels{2560, 1440}},
	ResolutionType6MP32:    {ResolutionType6MP32, AspectRatio32, ResolutionPixels{3072, 2048}},
	ResolutionType4KUHD:    {ResolutionType4KUHD, AspectRatio169, ResolutionPixels{3840, 2160}},
}

// AllResolutions returns every known resolution ordered by pixel count, then
// by name.
func AllResolutions() []Resolution {
	all := make([]Resolution, 0, len(resolutions))
	for _, res := range resolutions {
		all = append(all, res)
	}
	sort.Slice(all, func(i, j int) bool {
		pi := all[i].Pixels.Width * all[i].Pixels.Height
		pj := all[j].Pixels.Width * all[j].Pixels.Height
		if pi != pj {
			return pi < pj
		}
		return all[i].Name < all[j].Name
	})
	return all
}

// ResolutionByType retrieves a specific resolution by its type.
func ResolutionByType(t ResolutionType) (Resolution, bool) {
	res, ok := resolutions[t]
	return res, ok
}

// HighestResolutionUnder returns the largest resolution that fits inside the
// given dimensions.
//
// Arguments:
//   - width: The maximum width.
//   - height: The maximum height.
//
// Returns:
//   - Resolution: The largest fitting resolution.
//   - bool: True if a resolution was found, otherwise false.
func HighestResolutionUnder(width, height int) (Resolution, bool) {
	var highest Resolution
	var found bool

	for _, res := range AllResolutions() {
		if res.Pixels.Width <= width && res.Pixels.Height <= height {
			if !found || res.MegaPixels() >= highest.MegaPixels() {
				highest = res
				found = true
			}
		}
	}
	return highest, found
}
