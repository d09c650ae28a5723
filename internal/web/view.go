package web

import (
	"strconv"

	"github.com/google/uuid"

	"visioncraft/internal/poster"
	"visioncraft/internal/studio"
)

type imageView struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	MimeType    string `json:"mime_type"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Description string `json:"description,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
}

type canvasView struct {
	ImageURL  string `json:"image_url,omitempty"`
	Label     string `json:"label"`
	Poster    bool   `json:"poster"`
	CanToggle bool   `json:"can_toggle"`
}

// stateView is the wire form of a snapshot. Images are referenced by URL;
// the version query keeps browsers from showing a stale cached image.
type stateView struct {
	Settings         poster.Settings `json:"settings"`
	Theme            poster.Theme    `json:"theme"`
	RemoveBackground bool            `json:"remove_background"`
	Product          *imageView      `json:"product"`
	Cutout           *imageView      `json:"cutout"`
	Active           *imageView      `json:"active"`
	Generated        *imageView      `json:"generated"`
	Advice           []studio.Advice `json:"advice"`
	Busy             studio.Busy     `json:"busy"`
	Error            string          `json:"error,omitempty"`
	View             studio.View     `json:"view"`
	Canvas           canvasView      `json:"canvas"`
}

func renderState(s studio.State) stateView {
	out := stateView{
		Settings:         s.Settings,
		Theme:            s.Theme,
		RemoveBackground: s.RemoveBackground,
		Product:          productView(s.Product, "original"),
		Cutout:           productView(s.Cutout, "cutout"),
		Active:           productView(s.ActiveImage(), "active"),
		Advice:           s.Advice,
		Busy:             s.Busy,
		Error:            s.Error,
		View:             s.View,
	}
	if out.Advice == nil {
		out.Advice = []studio.Advice{}
	}

	if g := s.Generated; g != nil {
		out.Generated = &imageView{
			ID:       g.ID.String(),
			URL:      imageURL("poster", g.ID),
			MimeType: g.Image.MimeType,
			Width:    g.Image.Width,
			Height:   g.Image.Height,
			Prompt:   g.Prompt,
		}
	}

	canvas := s.Canvas()
	out.Canvas = canvasView{Label: canvas.Label, Poster: canvas.Poster, CanToggle: canvas.CanToggle}
	switch {
	case canvas.Image == nil:
	case canvas.Poster:
		out.Canvas.ImageURL = out.Generated.URL
	default:
		out.Canvas.ImageURL = out.Active.URL
	}
	return out
}

func productView(p *studio.ProductImage, variant string) *imageView {
	if p == nil {
		return nil
	}
	return &imageView{
		ID:          p.ID.String(),
		URL:         imageURL(variant, versionOf(p)),
		MimeType:    p.Image.MimeType,
		Width:       p.Image.Width,
		Height:      p.Image.Height,
		Description: p.Description,
	}
}

// versionOf distinguishes the cutout from its original, which share an ID.
func versionOf(p *studio.ProductImage) uuid.UUID {
	return uuid.NewSHA1(p.ID, []byte(p.Image.MimeType+":"+strconv.Itoa(len(p.Image.Data))))
}

func imageURL(variant string, version uuid.UUID) string {
	return "/api/image/" + variant + "?v=" + version.String()
}
