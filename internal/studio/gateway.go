package studio

import (
	"context"

	"visioncraft/internal/poster"
)

// Gateway is the generative backend. RemoveBackground and GeneratePoster
// return (nil, nil) when the model answered without an image.
type Gateway interface {
	Describe(ctx context.Context, img poster.Image) string
	RemoveBackground(ctx context.Context, img poster.Image) (*poster.Image, error)
	GeneratePoster(ctx context.Context, img poster.Image, description string, settings poster.Settings) (*poster.Image, error)
	Advice(ctx context.Context, posterPrompt, description string) ([]string, error)
}
