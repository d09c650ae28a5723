// Package imagefile turns uploaded bytes into product image payloads.
package imagefile

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"regexp"
	"strings"

	_ "golang.org/x/image/webp"

	"visioncraft/internal/poster"
)

// MaxUploadBytes bounds a single product photo.
const MaxUploadBytes = 25 << 20

var (
	ErrEmpty       = errors.New("image is empty")
	ErrTooLarge    = errors.New("image is too large")
	ErrUnsupported = errors.New("unsupported image type")
)

var accepted = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Accepted lists the upload MIME types, in the order the file picker offers them.
func Accepted() []string {
	return []string{"image/jpeg", "image/png", "image/webp"}
}

// Decode validates an upload. The declared MIME type is only used when the
// content cannot be sniffed.
func Decode(data []byte, declaredMime string) (poster.Image, error) {
	if len(data) == 0 {
		return poster.Image{}, ErrEmpty
	}
	if len(data) > MaxUploadBytes {
		return poster.Image{}, ErrTooLarge
	}

	mimeType := detectMime(data, declaredMime)
	if !accepted[mimeType] {
		return poster.Image{}, fmt.Errorf("%w: %s", ErrUnsupported, mimeType)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return poster.Image{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	return poster.Image{
		Data:     append([]byte(nil), data...),
		MimeType: mimeType,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}

// FromBase64 decodes a model response payload. Unlike Decode it tolerates
// formats it cannot measure, since the bytes came from the model and not a user.
func FromBase64(data, mimeType string) (poster.Image, error) {
	raw, err := base64.StdEncoding.DecodeString(stripDataURLPrefix(data))
	if err != nil {
		return poster.Image{}, fmt.Errorf("decode base64: %w", err)
	}
	if len(raw) == 0 {
		return poster.Image{}, ErrEmpty
	}

	img := poster.Image{
		Data:     raw,
		MimeType: detectMime(raw, mimeType),
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(raw)); err == nil {
		img.Width = cfg.Width
		img.Height = cfg.Height
	}
	return img, nil
}

// DecodeDataURL validates an upload sent as a data URL, the way a browser's
// FileReader produces it.
func DecodeDataURL(value string) (poster.Image, error) {
	mimeType, payload, err := ParseDataURL(value, "")
	if err != nil {
		return poster.Image{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxUploadBytes+3 {
		return poster.Image{}, ErrTooLarge
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return poster.Image{}, fmt.Errorf("%w: decode base64: %v", ErrUnsupported, err)
	}
	return Decode(raw, mimeType)
}

var dataURLRegex = regexp.MustCompile(`^data:([^;]+);base64,`)

// ParseDataURL splits a data URL into its MIME type and base64 payload. Bare
// base64 is accepted with the fallback MIME type.
func ParseDataURL(value, fallbackMime string) (string, string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", "", errors.New("empty data url")
	}

	mimeType := fallbackMime
	if matches := dataURLRegex.FindStringSubmatch(value); len(matches) == 2 {
		mimeType = matches[1]
	} else if strings.HasPrefix(value, "data:") {
		return "", "", errors.New("invalid data url")
	}
	return mimeType, stripDataURLPrefix(value), nil
}

func detectMime(data []byte, declared string) string {
	if sniffed := normalizeMime(http.DetectContentType(data)); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	mimeType := normalizeMime(declared)
	if mimeType == "image/jpg" {
		mimeType = "image/jpeg"
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = "image/jpeg"
	}
	return mimeType
}

func normalizeMime(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if strings.Contains(value, ";") {
		value = strings.TrimSpace(strings.SplitN(value, ";", 2)[0])
	}
	return value
}

func stripDataURLPrefix(value string) string {
	if idx := strings.IndexByte(value, ','); idx >= 0 {
		return value[idx+1:]
	}
	return value
}
