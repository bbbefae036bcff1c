package commands

import (
	"fmt"
	"image"
	"image/draw"
	"log/slog"

	"github.com/jo-hoe/emotionmirror/internal/backend/commandstructure"
)

const cropName = "CropCommand"

// CropParams represents typed parameters for the crop command.
// Square crops to the shorter side and ignores Width/Height.
type CropParams struct {
	Height int
	Width  int
	Square bool
}

// NewCropParamsFromMap creates CropParams from a generic map
func NewCropParamsFromMap(params map[string]any) (*CropParams, error) {
	if commandstructure.GetBoolParam(params, "square", false) {
		return &CropParams{Square: true}, nil
	}

	if err := commandstructure.ValidateRequiredParams(params, []string{"height", "width"}); err != nil {
		return nil, err
	}

	height := commandstructure.GetIntParam(params, "height", 0)
	width := commandstructure.GetIntParam(params, "width", 0)
	if height <= 0 {
		return nil, fmt.Errorf("height must be positive, got %d", height)
	}
	if width <= 0 {
		return nil, fmt.Errorf("width must be positive, got %d", width)
	}

	return &CropParams{
		Height: height,
		Width:  width,
	}, nil
}

// CropCommand cuts a centered region out of the image
type CropCommand struct {
	name   string
	params *CropParams
}

// NewCropCommand creates a new crop command from configuration parameters
func NewCropCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewCropParamsFromMap(params)
	if err != nil {
		return nil, err
	}

	return &CropCommand{
		name:   cropName,
		params: typedParams,
	}, nil
}

// Name returns the command name
func (c *CropCommand) Name() string {
	return c.name
}

func (c *CropCommand) cropSize(originalWidth, originalHeight int) (int, int) {
	if c.params.Square {
		side := min(originalWidth, originalHeight)
		return side, side
	}
	return min(c.params.Width, originalWidth), min(c.params.Height, originalHeight)
}

// Execute center-crops the image and encodes the result as PNG.
// Images already within the crop size are returned unchanged.
func (c *CropCommand) Execute(imageData []byte) ([]byte, error) {
	img, _, err := decodeImage(imageData)
	if err != nil {
		slog.Error("CropCommand: failed to decode image", "error", err)
		return nil, err
	}

	bounds := img.Bounds()
	originalWidth, originalHeight := bounds.Dx(), bounds.Dy()
	cropWidth, cropHeight := c.cropSize(originalWidth, originalHeight)

	if cropWidth == originalWidth && cropHeight == originalHeight {
		slog.Debug("CropCommand: no crop needed",
			"width", originalWidth,
			"height", originalHeight)
		return imageData, nil
	}

	origin := image.Point{
		X: bounds.Min.X + (originalWidth-cropWidth)/2,
		Y: bounds.Min.Y + (originalHeight-cropHeight)/2,
	}
	slog.Debug("CropCommand: performing center crop",
		"crop_x", origin.X,
		"crop_y", origin.Y,
		"crop_width", cropWidth,
		"crop_height", cropHeight)

	croppedImg := image.NewRGBA(image.Rect(0, 0, cropWidth, cropHeight))
	draw.Draw(croppedImg, croppedImg.Bounds(), img, origin, draw.Src)

	out, err := encodePNG(croppedImg)
	if err != nil {
		slog.Error("CropCommand: failed to encode cropped image", "error", err)
		return nil, fmt.Errorf("failed to encode cropped PNG image: %w", err)
	}
	return out, nil
}

// GetParams returns the typed parameters
func (c *CropCommand) GetParams() *CropParams {
	return c.params
}

func init() {
	if err := commandstructure.DefaultRegistry.Register(cropName, NewCropCommand); err != nil {
		panic(fmt.Sprintf("failed to register %s: %v", cropName, err))
	}
}
