package studio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/jung-kurt/gofpdf"
	_ "golang.org/x/image/webp"

	"visioncraft/internal/poster"
)

// pdfPageWidth is the page width in points; the height follows the poster.
const pdfPageWidth = 595.0

var pdfImageTypes = map[string]string{
	"image/png":  "PNG",
	"image/jpeg": "JPG",
	"image/jpg":  "JPG",
	"image/gif":  "GIF",
}

// RenderPDF places img edge to edge on a page with the same aspect ratio.
func RenderPDF(img poster.Image) ([]byte, error) {
	if img.IsZero() {
		return nil, errors.New("render pdf: empty image")
	}

	data, imageType, width, height, err := pdfImage(img)
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("render pdf: invalid image size %dx%d", width, height)
	}
	pageHeight := pdfPageWidth * float64(height) / float64(width)

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pdfPageWidth, Ht: pageHeight},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("VisionCraft poster", true)
	pdf.SetCreator("VisionCraft", true)
	pdf.AddPage()

	opts := gofpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader("poster", opts, bytes.NewReader(data))
	pdf.ImageOptions("poster", 0, 0, pdfPageWidth, pageHeight, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// pdfImage returns bytes gofpdf can embed. Formats it does not read, such as
// webp, are re-encoded as PNG.
func pdfImage(img poster.Image) ([]byte, string, int, int, error) {
	width, height := img.Width, img.Height

	if imageType, ok := pdfImageTypes[img.MimeType]; ok {
		if width <= 0 || height <= 0 {
			cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
			if err != nil {
				return nil, "", 0, 0, fmt.Errorf("read image size: %w", err)
			}
			width, height = cfg.Width, cfg.Height
		}
		return img.Data, imageType, width, height, nil
	}

	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, "", 0, 0, fmt.Errorf("decode %s: %w", img.MimeType, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, decoded); err != nil {
		return nil, "", 0, 0, fmt.Errorf("encode png: %w", err)
	}
	b := decoded.Bounds()
	return buf.Bytes(), "PNG", b.Dx(), b.Dy(), nil
}
