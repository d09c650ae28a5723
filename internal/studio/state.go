package studio

import (
	"strings"

	"github.com/google/uuid"

	"visioncraft/internal/poster"
)

type Busy struct {
	Describing         bool `json:"describing"`
	RemovingBackground bool `json:"removing_background"`
	Generating         bool `json:"generating"`
	FetchingAdvice     bool `json:"fetching_advice"`
}

func (b Busy) Any() bool {
	return b.Describing || b.RemovingBackground || b.Generating || b.FetchingAdvice
}

// ProductImage is an uploaded photo or its background-removed variant. Both
// variants of one upload share the ID.
type ProductImage struct {
	ID          uuid.UUID
	Image       poster.Image
	Description string
}

type GeneratedImage struct {
	ID        uuid.UUID
	Image     poster.Image
	Prompt    string
	ProductID uuid.UUID
}

type Advice struct {
	ID   int64  `json:"id"`
	Text string `json:"advice"`
}

type View string

const (
	ViewGenerated View = "generated"
	ViewOriginal  View = "original"
)

func ParseView(value string) (View, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "generated", "poster":
		return ViewGenerated, true
	case "original", "product":
		return ViewOriginal, true
	}
	return "", false
}

// State is one session's studio. Image payloads are never mutated after
// creation, so copies share their bytes.
type State struct {
	Settings         poster.Settings
	Theme            poster.Theme
	RemoveBackground bool
	Product          *ProductImage
	Cutout           *ProductImage
	Generated        *GeneratedImage
	Advice           []Advice
	Busy             Busy
	Error            string
	View             View
}

// ActiveImage is the variant used for generation and advice: the cutout when
// background removal is on and one exists, the original otherwise.
func (s State) ActiveImage() *ProductImage {
	if s.RemoveBackground && s.Cutout != nil {
		return s.Cutout
	}
	return s.Product
}

func (s State) clone() State {
	out := s
	if s.Product != nil {
		p := *s.Product
		out.Product = &p
	}
	if s.Cutout != nil {
		p := *s.Cutout
		out.Cutout = &p
	}
	if s.Generated != nil {
		g := *s.Generated
		out.Generated = &g
	}
	out.Advice = append([]Advice(nil), s.Advice...)
	return out
}
