// Package imaging normalizes item pictures for the kiosk display: every
// upload is sniffed, bounded, downscaled, and re-encoded as JPEG.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

// Defaults for a Processor's zero fields.
const (
	DefaultMaxDimension = 512
	DefaultJPEGQuality  = 85
	DefaultMaxBytes     = 8 << 20
)

var (
	ErrUnsupported = errors.New("imaging: unsupported image format")
	ErrTooLarge    = errors.New("imaging: image too large")
)

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// Picture is a processed item picture.
type Picture struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Processor turns uploads into display pictures.
type Processor struct {
	// MaxDimension bounds the longer side of the output.
	MaxDimension int
	// Quality is the JPEG quality, 1 to 100.
	Quality int
	// MaxBytes bounds the upload size.
	MaxBytes int64
}

func (p Processor) withDefaults() Processor {
	if p.MaxDimension <= 0 {
		p.MaxDimension = DefaultMaxDimension
	}
	if p.Quality <= 0 || p.Quality > 100 {
		p.Quality = DefaultJPEGQuality
	}
	if p.MaxBytes <= 0 {
		p.MaxBytes = DefaultMaxBytes
	}
	return p
}

// Process reads an upload, checks its format by sniffing the bytes rather
// than trusting the client, downscales it, and re-encodes it as JPEG.
func (p Processor) Process(r io.Reader) (*Picture, error) {
	p = p.withDefaults()

	data, err := io.ReadAll(io.LimitReader(r, p.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if int64(len(data)) > p.MaxBytes {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, p.MaxBytes)
	}

	detected := http.DetectContentType(data)
	if !allowedMIME[detected] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	img = downscale(img, p.MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.Quality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	b := img.Bounds()
	return &Picture{
		Data:   buf.Bytes(),
		MIME:   "image/jpeg",
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// downscale resizes img so neither side exceeds maxDim, keeping the aspect
// ratio. Images already within bounds are returned unchanged.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = max(1, h*maxDim/w)
	} else {
		newW = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func init() {
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
	image.RegisterFormat("gif", "GIF8?a", gif.Decode, gif.DecodeConfig)
}
