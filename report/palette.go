package report

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-parking/occupancy"
)

// Default overlay colours as hex strings.
const (
	DefaultFreeColor     = "#00ff00"
	DefaultOccupiedColor = "#ff0000"
	DefaultBannerColor   = "#00c800"
	uncertainColor       = "#808080"
)

// Palette holds the overlay and UI colours.
type Palette struct {
	Free     colorful.Color
	Occupied colorful.Color
	Banner   colorful.Color
}

// DefaultPalette returns green for free, red for occupied.
func DefaultPalette() Palette {
	p, _ := ParsePalette(DefaultFreeColor, DefaultOccupiedColor, DefaultBannerColor)
	return p
}

// ParsePalette parses "#rrggbb" colours. Empty strings take the defaults.
func ParsePalette(free, occupied, banner string) (Palette, error) {
	var p Palette
	for _, c := range []struct {
		dst  *colorful.Color
		hex  string
		def  string
		name string
	}{
		{&p.Free, free, DefaultFreeColor, "free"},
		{&p.Occupied, occupied, DefaultOccupiedColor, "occupied"},
		{&p.Banner, banner, DefaultBannerColor, "banner"},
	} {
		if c.hex == "" {
			c.hex = c.def
		}
		parsed, err := colorful.Hex(c.hex)
		if err != nil {
			return Palette{}, errors.Wrapf(err, "%s colour", c.name)
		}
		*c.dst = parsed
	}
	return p, nil
}

// RGBA converts a palette colour for drawing.
func RGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// StatusColor returns the hex colour of a status: its state colour blended
// towards gray as confidence drops.
func (p Palette) StatusColor(st occupancy.RegionStatus) string {
	base := p.Free
	if st.Occupied {
		base = p.Occupied
	}
	gray, _ := colorful.Hex(uncertainColor)
	t := min(max(st.Confidence, 0), 1)
	return gray.BlendLab(base, t).Clamped().Hex()
}
