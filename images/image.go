package images

// Image represents an encoded image with a format, data, width, and height.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// ContentType returns the MIME type for the encoded data.
func (i Image) ContentType() string {
	switch i.Format {
	case FormatPNG:
		return "image/png"
	default:
		return "image/jpeg"
	}
}
