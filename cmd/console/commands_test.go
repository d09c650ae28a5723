package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visioncraft/internal/poster"
	"visioncraft/internal/studio"
)

type stubGateway struct {
	generateErr error
}

func (stubGateway) Describe(context.Context, poster.Image) string { return "a ceramic mug" }

func (stubGateway) RemoveBackground(_ context.Context, img poster.Image) (*poster.Image, error) {
	return &img, nil
}

func (g stubGateway) GeneratePoster(_ context.Context, img poster.Image, _ string, _ poster.Settings) (*poster.Image, error) {
	if g.generateErr != nil {
		return nil, g.generateErr
	}
	return &img, nil
}

func (stubGateway) Advice(context.Context, string, string) ([]string, error) {
	return []string{"Add steam above the mug."}, nil
}

func newTestConsole(t *testing.T, gw stubGateway) (*console, *bytes.Buffer) {
	t.Helper()
	ctrl := studio.New(studio.Options{Gateway: gw})
	t.Cleanup(ctrl.Close)

	out := &bytes.Buffer{}
	return &console{studio: ctrl, out: out, dir: t.TempDir()}, out
}

func writePNG(t *testing.T, dir string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	path := filepath.Join(dir, "mug.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestConsoleWorkflow(t *testing.T) {
	c, out := newTestConsole(t, stubGateway{})
	ctx := context.Background()

	require.NoError(t, c.exec(ctx, "upload "+writePNG(t, t.TempDir())))
	assert.Contains(t, out.String(), "product:    a ceramic mug")

	require.NoError(t, c.exec(ctx, "bg on"))
	st := c.studio.Snapshot()
	require.NotNil(t, st.Cutout)
	assert.Contains(t, out.String(), "background: on, cutout ready")

	require.NoError(t, c.exec(ctx, "ratio 16:9"))
	require.NoError(t, c.exec(ctx, "creativity 0.25"))
	require.NoError(t, c.exec(ctx, "theme dark"))
	st = c.studio.Snapshot()
	assert.Equal(t, poster.AspectRatioWide, st.Settings.AspectRatio)
	assert.InDelta(t, 0.25, st.Settings.Creativity, 1e-9)
	assert.Equal(t, poster.ThemeDark, st.Theme)

	require.NoError(t, c.exec(ctx, "generate"))
	assert.Contains(t, out.String(), "canvas:     AI Generated Poster")

	require.NoError(t, c.exec(ctx, "advice"))
	assert.Contains(t, out.String(), "1) Add steam above the mug.")

	require.NoError(t, c.exec(ctx, "save"))
	require.NoError(t, c.exec(ctx, "pdf"))
	assert.FileExists(t, filepath.Join(c.dir, studio.DownloadName))
	pdf, err := os.ReadFile(filepath.Join(c.dir, studio.PDFName))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	require.NoError(t, c.exec(ctx, "view original"))
	assert.Contains(t, out.String(), "canvas:     Original Product")
}

func TestConsoleErrors(t *testing.T) {
	c, _ := newTestConsole(t, stubGateway{generateErr: errors.New("boom")})
	ctx := context.Background()

	assert.ErrorIs(t, c.exec(ctx, "generate"), studio.ErrNoProductImage)
	assert.ErrorIs(t, c.exec(ctx, "save"), studio.ErrNoPoster)
	assert.ErrorIs(t, c.exec(ctx, "ratio 2:1"), studio.ErrInvalidSettings)
	assert.ErrorIs(t, c.exec(ctx, "theme neon"), studio.ErrUnknownTheme)
	assert.Error(t, c.exec(ctx, "bg maybe"))
	assert.Error(t, c.exec(ctx, "upload"))
	assert.Error(t, c.exec(ctx, "frobnicate"))
	assert.ErrorIs(t, c.exec(ctx, "quit"), errQuit)
	assert.NoError(t, c.exec(ctx, "   "))

	require.NoError(t, c.exec(ctx, "upload "+writePNG(t, t.TempDir())))
	assert.EqualError(t, c.exec(ctx, "generate"), studio.MsgGenerateFailed)
}

func TestConsoleModeAndReset(t *testing.T) {
	c, _ := newTestConsole(t, stubGateway{})
	ctx := context.Background()

	require.NoError(t, c.exec(ctx, `json {"concept": "cozy"}`))
	require.NoError(t, c.exec(ctx, "mode json"))
	st := c.studio.Snapshot()
	assert.Equal(t, poster.PromptModeJSON, st.Settings.PromptMode)
	assert.Equal(t, `{"concept": "cozy"}`, st.Settings.EffectivePrompt())

	require.NoError(t, c.exec(ctx, "reset"))
	assert.Equal(t, poster.DefaultSettings(), c.studio.Snapshot().Settings)
}
