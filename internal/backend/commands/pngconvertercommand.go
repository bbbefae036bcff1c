package commands

import (
	"bytes"
	"fmt"
	"image/color"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/jo-hoe/emotionmirror/internal/backend/commandstructure"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const pngConverterName = "PngConverterCommand"

var (
	pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

	svgTagPattern  = regexp.MustCompile(`(?is)<svg\b[^>]*>`)
	svgSizePattern = regexp.MustCompile(`(?i)\b(width|height)\s*=\s*["']\s*(\d+)`)
)

// HasPngSignature reports whether data begins with the PNG file signature
func HasPngSignature(data []byte) bool {
	return len(data) >= len(pngSignature) && bytes.Equal(data[:len(pngSignature)], pngSignature)
}

// PngConverterCommand converts PNG, JPEG, GIF, BMP, TIFF, WebP and SVG input to PNG
type PngConverterCommand struct {
	name              string
	svgFallbackWidth  int
	svgFallbackHeight int
}

// NewPngConverterCommand creates a PNG converter from configuration parameters.
// svgFallbackWidth/svgFallbackHeight size SVGs that carry no explicit width and height.
func NewPngConverterCommand(params map[string]any) (commandstructure.Command, error) {
	w := commandstructure.GetIntParam(params, "svgFallbackWidth", 0)
	h := commandstructure.GetIntParam(params, "svgFallbackHeight", 0)
	if w < 0 || h < 0 {
		return nil, fmt.Errorf("svg fallback size must not be negative, got %dx%d", w, h)
	}
	return NewPngConverterCommandDirect(w, h), nil
}

// NewPngConverterCommandDirect creates a PNG converter without going through the registry
func NewPngConverterCommandDirect(svgFallbackWidth, svgFallbackHeight int) *PngConverterCommand {
	return &PngConverterCommand{
		name:              pngConverterName,
		svgFallbackWidth:  svgFallbackWidth,
		svgFallbackHeight: svgFallbackHeight,
	}
}

// Name returns the command name
func (c *PngConverterCommand) Name() string {
	return c.name
}

// Execute returns PNG input untouched and re-encodes everything else as PNG
func (c *PngConverterCommand) Execute(imageData []byte) ([]byte, error) {
	if HasPngSignature(imageData) {
		slog.Debug("PngConverterCommand: PNG detected; returning original bytes")
		return imageData, nil
	}

	if isSVGData(imageData) {
		return c.convertSVG(imageData)
	}

	img, format, err := decodeImage(imageData)
	if err != nil {
		slog.Error("PngConverterCommand: failed to decode image", "error", err)
		return nil, err
	}

	out, err := encodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image to PNG: %w", err)
	}
	slog.Debug("PngConverterCommand: raster conversion complete",
		"source_format", format,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
		"output_size_bytes", len(out))
	return out, nil
}

func (c *PngConverterCommand) convertSVG(imageData []byte) ([]byte, error) {
	w, h, ok := parseSvgExplicitSize(imageData)
	if !ok {
		w, h = c.svgFallbackWidth, c.svgFallbackHeight
		if w <= 0 || h <= 0 {
			return nil, fmt.Errorf("SVG fallback size not set; cannot render SVG without explicit size")
		}
	}
	if err := checkPixels(w, h, MaxDecodePixels); err != nil {
		return nil, err
	}

	out, err := renderSVGToPNG(imageData, w, h)
	if err != nil {
		slog.Error("PngConverterCommand: failed to render SVG", "width", w, "height", h, "error", err)
		return nil, fmt.Errorf("failed to render SVG to PNG: %w", err)
	}
	return out, nil
}

// parseSvgExplicitSize reads integer width and height attributes from the root svg tag.
// viewBox is deliberately ignored; it is not a pixel size.
func parseSvgExplicitSize(data []byte) (int, int, bool) {
	tag := svgTagPattern.Find(data[:min(len(data), 8192)])
	if tag == nil {
		return 0, 0, false
	}

	var w, h int
	for _, m := range svgSizePattern.FindAllSubmatch(tag, -1) {
		v, err := strconv.Atoi(string(m[2]))
		if err != nil || v <= 0 {
			continue
		}
		switch string(bytes.ToLower(m[1])) {
		case "width":
			if w == 0 {
				w = v
			}
		case "height":
			if h == 0 {
				h = v
			}
		}
	}
	return w, h, w > 0 && h > 0
}

// isSVGData looks for an svg tag or the SVG namespace in the first 4KB
func isSVGData(data []byte) bool {
	header := bytes.ToLower(bytes.TrimSpace(data[:min(len(data), 4096)]))
	return bytes.Contains(header, []byte("<svg")) ||
		bytes.Contains(header, []byte("http://www.w3.org/2000/svg"))
}

// renderSVGToPNG rasterizes SVG onto a white canvas of the given size
func renderSVGToPNG(svgData []byte, targetW, targetH int) ([]byte, error) {
	if targetW <= 0 || targetH <= 0 {
		return nil, fmt.Errorf("invalid target dimensions for SVG rendering: %dx%d", targetW, targetH)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}
	icon.SetTarget(0, 0, float64(targetW), float64(targetH))

	dst := createTargetCanvas(targetW, targetH, color.RGBA{255, 255, 255, 255})
	scanner := rasterx.NewScannerGV(targetW, targetH, dst, dst.Bounds())
	dasher := rasterx.NewDasher(targetW, targetH, scanner)
	icon.Draw(dasher, 1.0)

	return encodePNG(dst)
}

func init() {
	if err := commandstructure.DefaultRegistry.Register(pngConverterName, NewPngConverterCommand); err != nil {
		panic(fmt.Sprintf("failed to register %s: %v", pngConverterName, err))
	}
}
