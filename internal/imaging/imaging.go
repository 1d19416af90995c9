// Package imaging validates radiograph uploads and extracts the image
// properties recorded on each analysis.
package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"image"

	// registered codecs for image.DecodeConfig
	_ "image/jpeg"
	_ "image/png"

	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/errors"
)

// Info describes a validated radiograph upload.
type Info struct {
	Width    int    // pixel width
	Height   int    // pixel height
	Format   string // "png" or "jpeg"
	Size     int64  // byte size of the upload
	Checksum string // hex encoded SHA-256 of the content
}

// acceptedFormats are the image formats the model pipeline accepts.
var acceptedFormats = map[string]bool{
	"png":  true,
	"jpeg": true,
}

// Inspect validates an uploaded radiograph and returns its properties.
// Anything that is not a decodable PNG or JPEG is rejected.
func Inspect(data []byte) (*Info, error) {
	if len(data) == 0 {
		return nil, errors.Newf("empty image upload").
			Category(errors.CategoryImageDecode).
			Build()
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryImageDecode).
			Context("operation", "decode-config").
			Build()
	}

	if !acceptedFormats[format] {
		return nil, errors.Newf("unsupported image format: %s", format).
			Category(errors.CategoryImageDecode).
			Context("format", format).
			Build()
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.Newf("invalid image dimensions %dx%d", cfg.Width, cfg.Height).
			Category(errors.CategoryImageDecode).
			Build()
	}

	return &Info{
		Width:    cfg.Width,
		Height:   cfg.Height,
		Format:   format,
		Size:     int64(len(data)),
		Checksum: Checksum(data),
	}, nil
}

// Checksum returns the hex encoded SHA-256 of the image content. Used as a
// cache key for inference responses and for upload dedup.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
