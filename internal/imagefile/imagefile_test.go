package imagefile

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestDecodePNG(t *testing.T) {
	data := encodePNG(t, 30, 20)

	img, err := Decode(data, "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, 30, img.Width)
	assert.Equal(t, 20, img.Height)
	assert.Equal(t, data, img.Data)
}

func TestDecodeSniffsOverDeclaredType(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil))

	img, err := Decode(buf.Bytes(), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MimeType)
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode(nil, "image/png")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Decode(make([]byte, MaxUploadBytes+1), "image/png")
	assert.ErrorIs(t, err, ErrTooLarge)

	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, image.NewPaletted(image.Rect(0, 0, 4, 4), palette.Plan9), nil))
	_, err = Decode(buf.Bytes(), "image/gif")
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Decode([]byte("definitely not an image"), "image/png")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestFromBase64(t *testing.T) {
	data := encodePNG(t, 5, 7)
	encoded := base64.StdEncoding.EncodeToString(data)

	img, err := FromBase64(encoded, "")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, 5, img.Width)
	assert.Equal(t, 7, img.Height)

	img, err = FromBase64("data:image/png;base64,"+encoded, "image/png")
	require.NoError(t, err)
	assert.Equal(t, data, img.Data)

	_, err = FromBase64("%%%", "image/png")
	assert.Error(t, err)
}

func TestParseDataURL(t *testing.T) {
	mimeType, payload, err := ParseDataURL("data:image/webp;base64,QUJD", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "image/webp", mimeType)
	assert.Equal(t, "QUJD", payload)

	mimeType, payload, err = ParseDataURL("QUJD", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, "QUJD", payload)

	_, _, err = ParseDataURL("data:nonsense", "image/png")
	assert.Error(t, err)
	_, _, err = ParseDataURL(" ", "image/png")
	assert.Error(t, err)
}

func TestDecodeDataURL(t *testing.T) {
	data := encodePNG(t, 3, 4)
	encoded := base64.StdEncoding.EncodeToString(data)

	img, err := DecodeDataURL("data:image/png;base64," + encoded)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, 3, img.Width)
	assert.Equal(t, "data:image/png;base64,"+encoded, img.DataURL())

	img, err = DecodeDataURL(encoded)
	require.NoError(t, err)
	assert.Equal(t, data, img.Data)

	_, err = DecodeDataURL("data:image/png;base64,%%%")
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = DecodeDataURL("")
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = DecodeDataURL("data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("hello")))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestAccepted(t *testing.T) {
	assert.Equal(t, []string{"image/jpeg", "image/png", "image/webp"}, Accepted())
}
