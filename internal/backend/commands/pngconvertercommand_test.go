package commands

import (
	"bytes"
	"testing"

	"github.com/jo-hoe/emotionmirror/internal/backend/commandstructure"
)

func TestPngConverterCommand_Execute_InvalidImage(t *testing.T) {
	command := NewPngConverterCommandDirect(0, 0)
	if _, err := command.Execute([]byte("not a valid image")); err == nil {
		t.Error("Expected error for invalid image data, got nil")
	}
}

func TestPngConverterCommand_Execute_AlreadyPng(t *testing.T) {
	command := NewPngConverterCommandDirect(0, 0)
	input := encodeTestPNG(t, 8, 8)

	result, err := command.Execute(input)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !bytes.Equal(input, result) {
		t.Error("Expected PNG input to be returned unchanged")
	}
}

func TestPngConverterCommand_Execute_Jpeg(t *testing.T) {
	command := NewPngConverterCommandDirect(0, 0)

	result, err := command.Execute(encodeTestJPEG(t, 20, 10))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !HasPngSignature(result) {
		t.Fatal("Expected PNG output for JPEG input")
	}
	b := decodeTestPNG(t, result).Bounds()
	if b.Dx() != 20 || b.Dy() != 10 {
		t.Errorf("Expected 20x10, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestPngConverterCommand_RenderSVG(t *testing.T) {
	tests := []struct {
		name       string
		svg        string
		params     map[string]any
		wantW      int
		wantH      int
		expectFail bool
	}{
		{
			name:   "fallback size",
			svg:    `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100"><rect width="100" height="100" fill="red"/></svg>`,
			params: map[string]any{"svgFallbackWidth": 64, "svgFallbackHeight": 64},
			wantW:  64,
			wantH:  64,
		},
		{
			name:   "explicit size wins",
			svg:    `<svg xmlns="http://www.w3.org/2000/svg" width="32px" height='16' viewBox="0 0 100 100"><rect width="100" height="100" fill="red"/></svg>`,
			params: map[string]any{"svgFallbackWidth": 64, "svgFallbackHeight": 64},
			wantW:  32,
			wantH:  16,
		},
		{
			name:       "no size available",
			svg:        `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100"></svg>`,
			params:     map[string]any{},
			expectFail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			command, err := NewPngConverterCommand(tt.params)
			if err != nil {
				t.Fatalf("Failed to create command: %v", err)
			}
			result, err := command.Execute([]byte(tt.svg))
			if tt.expectFail {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute failed for SVG: %v", err)
			}
			b := decodeTestPNG(t, result).Bounds()
			if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Fatalf("Expected PNG dimensions %dx%d, got %dx%d", tt.wantW, tt.wantH, b.Dx(), b.Dy())
			}
		})
	}
}

func TestNewPngConverterCommand_NegativeFallback(t *testing.T) {
	if _, err := NewPngConverterCommand(map[string]any{"svgFallbackWidth": -1}); err == nil {
		t.Error("Expected error for negative fallback width")
	}
}

func TestHasPngSignature(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected bool
	}{
		{"Valid PNG signature", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, true},
		{"Invalid signature", make([]byte, 8), false},
		{"Too short", []byte{0x89, 'P', 'N', 'G'}, false},
		{"Empty data", []byte{}, false},
		{"JPEG signature", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasPngSignature(tt.data); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestRegisteredInDefaultRegistry(t *testing.T) {
	for _, name := range []string{"PngConverterCommand", "PixelScaleCommand", "CropCommand"} {
		if !commandstructure.DefaultRegistry.IsRegistered(name) {
			t.Errorf("Expected %s to be registered in DefaultRegistry", name)
		}
	}
}
