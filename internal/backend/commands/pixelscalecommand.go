package commands

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/jo-hoe/emotionmirror/internal/backend/commandstructure"
)

const pixelScaleName = "PixelScaleCommand"

// PixelScaleParams represents typed parameters for the pixel scale command.
// Width/Height request an exact dimension; MaxWidth/MaxHeight only shrink.
type PixelScaleParams struct {
	Height    *int
	Width     *int
	MaxWidth  *int
	MaxHeight *int
}

func optionalPositiveInt(params map[string]any, key string) (*int, error) {
	if _, ok := params[key]; !ok {
		return nil, nil
	}
	v := commandstructure.GetIntParam(params, key, 0)
	if v <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %d", key, v)
	}
	return &v, nil
}

// NewPixelScaleParamsFromMap creates PixelScaleParams from a generic map
func NewPixelScaleParamsFromMap(params map[string]any) (*PixelScaleParams, error) {
	result := &PixelScaleParams{}
	targets := []struct {
		key string
		dst **int
	}{
		{"height", &result.Height},
		{"width", &result.Width},
		{"maxWidth", &result.MaxWidth},
		{"maxHeight", &result.MaxHeight},
	}
	for _, target := range targets {
		v, err := optionalPositiveInt(params, target.key)
		if err != nil {
			return nil, err
		}
		*target.dst = v
	}

	exact := result.Width != nil || result.Height != nil
	bounded := result.MaxWidth != nil || result.MaxHeight != nil
	switch {
	case !exact && !bounded:
		return nil, fmt.Errorf("at least one of 'height', 'width', 'maxWidth' or 'maxHeight' must be specified")
	case exact && bounded:
		return nil, fmt.Errorf("exact dimensions and max bounds cannot be combined")
	}
	return result, nil
}

// PixelScaleCommand resizes images with nearest-neighbor sampling
type PixelScaleCommand struct {
	name   string
	params *PixelScaleParams
}

// NewPixelScaleCommand creates a new pixel scale command from configuration parameters
func NewPixelScaleCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewPixelScaleParamsFromMap(params)
	if err != nil {
		return nil, err
	}

	return &PixelScaleCommand{
		name:   pixelScaleName,
		params: typedParams,
	}, nil
}

// NewThumbnailCommand scales to the given width, keeping the aspect ratio
func NewThumbnailCommand(width int) (*PixelScaleCommand, error) {
	command, err := NewPixelScaleCommand(map[string]any{"width": width})
	if err != nil {
		return nil, err
	}
	return command.(*PixelScaleCommand), nil
}

// Name returns the command name
func (c *PixelScaleCommand) Name() string {
	return c.name
}

// targetSize computes the output dimensions for an image of the given size
func (c *PixelScaleCommand) targetSize(originalWidth, originalHeight int) (int, int) {
	aspectRatio := float64(originalWidth) / float64(originalHeight)
	p := c.params

	switch {
	case p.Width != nil && p.Height != nil:
		return *p.Width, *p.Height
	case p.Width != nil:
		return *p.Width, max(1, int(float64(*p.Width)/aspectRatio))
	case p.Height != nil:
		return max(1, int(float64(*p.Height)*aspectRatio)), *p.Height
	}

	scale := 1.0
	if p.MaxWidth != nil && originalWidth > *p.MaxWidth {
		scale = min(scale, float64(*p.MaxWidth)/float64(originalWidth))
	}
	if p.MaxHeight != nil && originalHeight > *p.MaxHeight {
		scale = min(scale, float64(*p.MaxHeight)/float64(originalHeight))
	}
	return max(1, int(float64(originalWidth)*scale)), max(1, int(float64(originalHeight)*scale))
}

// Execute scales the image and encodes the result as PNG.
// Input already within max bounds is returned unchanged.
func (c *PixelScaleCommand) Execute(imageData []byte) ([]byte, error) {
	img, _, err := decodeImage(imageData)
	if err != nil {
		slog.Error("PixelScaleCommand: failed to decode image", "error", err)
		return nil, err
	}

	bounds := img.Bounds()
	originalWidth, originalHeight := bounds.Dx(), bounds.Dy()
	targetWidth, targetHeight := c.targetSize(originalWidth, originalHeight)

	if targetWidth == originalWidth && targetHeight == originalHeight {
		slog.Debug("PixelScaleCommand: no scaling needed",
			"width", originalWidth,
			"height", originalHeight)
		return imageData, nil
	}

	slog.Debug("PixelScaleCommand: scaling image",
		"original_width", originalWidth,
		"original_height", originalHeight,
		"target_width", targetWidth,
		"target_height", targetHeight)

	xMap, yMap := buildIndexMaps(originalWidth, originalHeight, targetWidth, targetHeight)
	targetImg := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	parallelFor(targetHeight, func(y int) {
		for x := 0; x < targetWidth; x++ {
			targetImg.Set(x, y, img.At(bounds.Min.X+xMap[x], bounds.Min.Y+yMap[y]))
		}
	})

	out, err := encodePNG(targetImg)
	if err != nil {
		slog.Error("PixelScaleCommand: failed to encode scaled image", "error", err)
		return nil, fmt.Errorf("failed to encode scaled PNG image: %w", err)
	}
	return out, nil
}

// GetParams returns the typed parameters
func (c *PixelScaleCommand) GetParams() *PixelScaleParams {
	return c.params
}

func init() {
	if err := commandstructure.DefaultRegistry.Register(pixelScaleName, NewPixelScaleCommand); err != nil {
		panic(fmt.Sprintf("failed to register %s: %v", pixelScaleName, err))
	}
}
