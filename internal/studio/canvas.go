package studio

import (
	"visioncraft/internal/poster"
)

const (
	DownloadName = "visioncraft-poster.png"
	PDFName      = "visioncraft-poster.pdf"
)

// Canvas is what the preview area shows for a given state.
type Canvas struct {
	Image *poster.Image
	Label string
	// Poster reports whether the displayed image is the generated one.
	Poster bool
	// CanToggle is set once a poster exists; only then can the user switch views.
	CanToggle bool
}

func (s State) Canvas() Canvas {
	active := s.ActiveImage()
	out := Canvas{CanToggle: s.Generated != nil}

	switch {
	case s.View == ViewOriginal && active != nil:
		out.Image = &active.Image
	case s.Generated != nil:
		out.Image = &s.Generated.Image
		out.Poster = true
	case active != nil:
		out.Image = &active.Image
	}

	switch {
	case s.Generated == nil:
		out.Label = "Canvas"
	case out.Poster:
		out.Label = "AI Generated Poster"
	default:
		out.Label = "Original Product"
	}
	return out
}

// Download returns the generated poster and the file name to save it under.
func (c *Controller) Download() (poster.Image, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Generated == nil {
		return poster.Image{}, "", ErrNoPoster
	}
	return c.state.Generated.Image, DownloadName, nil
}

// ExportPDF renders the generated poster onto a single page.
func (c *Controller) ExportPDF() ([]byte, string, error) {
	img, _, err := c.Download()
	if err != nil {
		return nil, "", err
	}

	data, err := RenderPDF(img)
	if err != nil {
		c.logger.Error("pdf export failed", "err", err)
		return nil, "", err
	}
	return data, PDFName, nil
}
