package gemini

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"visioncraft/internal/poster"
)

// Gateway is the studio's view of Gemini: describe, remove background,
// generate poster and creative advice. Each call is a single request.
type Gateway struct {
	rest   *Client
	text   *textModel
	logger *slog.Logger
}

// NewGateway never fails: a missing key or an SDK init error is logged and
// every call that needs it fails on its own.
func NewGateway(ctx context.Context, opts Options) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	g := &Gateway{
		rest:   New(opts),
		logger: logger,
	}

	text, err := newTextModel(ctx, opts.APIKey, strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		logger.Warn("gemini text model unavailable, calls will fail", "err", err)
	} else {
		g.text = text
	}
	return g
}

func (g *Gateway) Close() error {
	return g.text.Close()
}

// Describe returns a short marketing description of the product, or the
// generic fallback when anything goes wrong.
func (g *Gateway) Describe(ctx context.Context, img poster.Image) string {
	if g.text == nil {
		g.logger.Error("describe image failed", "err", ErrNoAPIKey)
		return poster.FallbackDescription
	}

	text, err := g.text.describe(ctx, img)
	if err != nil {
		g.logger.Error("describe image failed", "err", err)
		return poster.FallbackDescription
	}
	if text == "" {
		g.logger.Warn("describe image returned no text")
		return poster.FallbackDescription
	}
	return text
}

// RemoveBackground returns (nil, nil) when the model answered without an image.
func (g *Gateway) RemoveBackground(ctx context.Context, img poster.Image) (*poster.Image, error) {
	out, resp, err := g.rest.EditImage(ctx, poster.RemoveBackgroundInstruction(), img, ImageOptions{})
	if err != nil {
		return nil, fmt.Errorf("remove background: %w", err)
	}
	if out == nil {
		g.logger.Warn("remove background returned no image", "finish_reason", resp.FinishReason, "text", truncate(resp.Text, 200))
	}
	return out, nil
}

// GeneratePoster returns (nil, nil) when the model answered without an image.
func (g *Gateway) GeneratePoster(ctx context.Context, img poster.Image, description string, settings poster.Settings) (*poster.Image, error) {
	prompt, err := poster.BuildPrompt(description, settings)
	if err != nil {
		return nil, err
	}

	temperature := settings.Creativity
	out, resp, err := g.rest.EditImage(ctx, prompt, img, ImageOptions{
		AspectRatio: string(settings.AspectRatio),
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate poster: %w", err)
	}
	if out == nil {
		g.logger.Warn("generate poster returned no image", "finish_reason", resp.FinishReason, "text", truncate(resp.Text, 200))
	}
	return out, nil
}

func (g *Gateway) Advice(ctx context.Context, posterPrompt, description string) ([]string, error) {
	if g.text == nil {
		return nil, fmt.Errorf("creative advice: %w", ErrNoAPIKey)
	}
	list, err := g.text.advice(ctx, posterPrompt, description)
	if err != nil {
		return nil, err
	}
	if len(list) > poster.AdviceCount {
		list = list[:poster.AdviceCount]
	}
	return list, nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
