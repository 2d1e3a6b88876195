package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

func testImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func createTestJPEG(w, h int) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, testImage(w, h, color.RGBA{255, 0, 0, 255}), &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func createTestPNG(w, h int) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, testImage(w, h, color.RGBA{0, 0, 255, 255}))
	return buf.Bytes()
}

func createTestGIF(w, h int) []byte {
	var buf bytes.Buffer
	gif.Encode(&buf, testImage(w, h, color.RGBA{0, 255, 0, 255}), nil)
	return buf.Bytes()
}

func TestProcessFormats(t *testing.T) {
	inputs := map[string][]byte{
		"jpeg": createTestJPEG(100, 100),
		"png":  createTestPNG(100, 100),
		"gif":  createTestGIF(100, 100),
	}
	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			result, err := Processor{}.Process(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("Process %s: %v", name, err)
			}
			if result.MIME != "image/jpeg" {
				t.Errorf("expected image/jpeg (always outputs JPEG), got %s", result.MIME)
			}
			if len(result.Data) == 0 {
				t.Error("expected non-empty data")
			}
		})
	}
}

func TestProcessDownscaleKeepsAspect(t *testing.T) {
	data := createTestJPEG(1200, 600)
	result, err := Processor{MaxDimension: 300}.Process(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Process large image: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 300 || bounds.Dy() != 150 {
		t.Errorf("expected 300x150, got %dx%d", bounds.Dx(), bounds.Dy())
	}
	if result.Width != 300 || result.Height != 150 {
		t.Errorf("expected reported size 300x150, got %dx%d", result.Width, result.Height)
	}
}

func TestProcessDefaultBound(t *testing.T) {
	result, err := Processor{}.Process(bytes.NewReader(createTestPNG(600, 1000)))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Height != DefaultMaxDimension || result.Width != 307 {
		t.Errorf("expected 307x%d, got %dx%d", DefaultMaxDimension, result.Width, result.Height)
	}
}

func TestProcessSmallImageNotUpscaled(t *testing.T) {
	result, err := Processor{}.Process(bytes.NewReader(createTestJPEG(50, 50)))
	if err != nil {
		t.Fatalf("Process small image: %v", err)
	}
	if result.Width != 50 || result.Height != 50 {
		t.Errorf("small image should not be resized: got %dx%d", result.Width, result.Height)
	}
}

func TestProcessInvalidFormat(t *testing.T) {
	_, err := Processor{}.Process(bytes.NewReader([]byte("not an image")))
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestProcessTooLarge(t *testing.T) {
	data := createTestPNG(100, 100)
	_, err := Processor{MaxBytes: int64(len(data) - 1)}.Process(bytes.NewReader(data))
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}
