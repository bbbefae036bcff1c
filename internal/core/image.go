package core

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jo-hoe/emotionmirror/internal/backend/commands"
)

const (
	mimePNG  = "image/png"
	mimeJPEG = "image/jpeg"
)

// CapturedImage is the photo a session is about to reflect on
type CapturedImage struct {
	Data     []byte
	MimeType string
}

// Base64 returns the image bytes in standard base64 encoding
func (c CapturedImage) Base64() string {
	return base64.StdEncoding.EncodeToString(c.Data)
}

func (c CapturedImage) DataURL() string {
	return "data:" + c.MimeType + ";base64," + c.Base64()
}

// ParseDataURL decodes a base64 data URL as produced by canvas.toDataURL.
// A bare base64 payload is accepted as well. The mime type defaults to image/jpeg.
func ParseDataURL(dataURL string) (CapturedImage, error) {
	dataURL = strings.TrimSpace(dataURL)
	mimeType := mimeJPEG
	payload := dataURL

	if meta, data, ok := strings.Cut(dataURL, ","); ok {
		payload = data
		if !strings.HasPrefix(meta, "data:") || !strings.HasSuffix(meta, ";base64") {
			return CapturedImage{}, fmt.Errorf("unsupported data URL header %q", meta)
		}
		if m := strings.TrimSuffix(strings.TrimPrefix(meta, "data:"), ";base64"); m != "" {
			mimeType = m
		}
	}
	if payload == "" {
		return CapturedImage{}, errors.New("data URL carries no image data")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return CapturedImage{}, fmt.Errorf("failed to decode image data: %w", err)
	}
	if len(data) == 0 {
		return CapturedImage{}, errors.New("data URL carries no image data")
	}
	return CapturedImage{Data: data, MimeType: mimeType}, nil
}

// prepareImage runs the configured commands and makes sure the result is PNG or JPEG
func (s *CoreService) prepareImage(data []byte) (CapturedImage, error) {
	if len(data) == 0 {
		return CapturedImage{}, errors.New("image is empty")
	}
	if err := commands.CheckPixelBudget(data, s.config.MaxImagePixels); err != nil {
		return CapturedImage{}, err
	}

	prepared, err := s.preparer.Execute(data)
	if err != nil {
		return CapturedImage{}, fmt.Errorf("failed to prepare image: %w", err)
	}

	mimeType := http.DetectContentType(prepared)
	if mimeType != mimePNG && mimeType != mimeJPEG {
		prepared, err = s.pngConverter.Execute(prepared)
		if err != nil {
			return CapturedImage{}, fmt.Errorf("failed to convert %s image: %w", mimeType, err)
		}
		mimeType = mimePNG
	}
	return CapturedImage{Data: prepared, MimeType: mimeType}, nil
}
