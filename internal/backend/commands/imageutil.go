package commands

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
)

// MaxDecodePixels caps the pixel count any command will allocate for a single image
const MaxDecodePixels = 64_000_000

// ErrImageTooLarge is returned for images whose declared size exceeds the pixel budget
var ErrImageTooLarge = errors.New("image dimensions exceed the pixel budget")

// ImageDimensions reads the declared size of a raster image or an SVG with explicit
// width and height without decoding pixel data. ok is false for SVGs without a size.
func ImageDimensions(data []byte) (width, height int, ok bool, err error) {
	if isSVGData(data) {
		width, height, ok = parseSvgExplicitSize(data)
		return width, height, ok, nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to read image header: %w", err)
	}
	return cfg.Width, cfg.Height, true, nil
}

// CheckPixelBudget rejects images that declare more than maxPixels pixels.
// A non-positive maxPixels disables the check.
func CheckPixelBudget(data []byte, maxPixels int) error {
	if maxPixels <= 0 {
		return nil
	}
	width, height, ok, err := ImageDimensions(data)
	if err != nil {
		return err
	}
	if ok {
		return checkPixels(width, height, maxPixels)
	}
	return nil
}

func checkPixels(width, height, maxPixels int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid image dimensions %dx%d", width, height)
	}
	if int64(width)*int64(height) > int64(maxPixels) {
		return fmt.Errorf("%dx%d exceeds %d pixels: %w", width, height, maxPixels, ErrImageTooLarge)
	}
	return nil
}

// decodeImage decodes any raster format that has a decoder registered in this package
func decodeImage(data []byte) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	if err := checkPixels(cfg.Width, cfg.Height, MaxDecodePixels); err != nil {
		return nil, "", err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

func createTargetCanvas(w, h int, bg color.Color) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	bb := img.Bounds()
	// rough heuristic: 1 byte per pixel
	buf.Grow(bb.Dx() * bb.Dy())
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// buildIndexMaps precomputes nearest-neighbor source coordinates for a scaled target
func buildIndexMaps(originalWidth, originalHeight, scaledWidth, scaledHeight int) ([]int, []int) {
	xMap := make([]int, scaledWidth)
	yMap := make([]int, scaledHeight)
	for x := 0; x < scaledWidth; x++ {
		xMap[x] = min(int(float64(x)*float64(originalWidth)/float64(scaledWidth)), originalWidth-1)
	}
	for y := 0; y < scaledHeight; y++ {
		yMap[y] = min(int(float64(y)*float64(originalHeight)/float64(scaledHeight)), originalHeight-1)
	}
	return xMap, yMap
}
