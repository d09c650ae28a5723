package poster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettingsAreValid(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, s.Validate())
	assert.Equal(t, AspectRatioSquare, s.AspectRatio)
	assert.Equal(t, PromptModeText, s.PromptMode)
	assert.Equal(t, 1.0, s.Creativity)

	_, err := s.CompactJSONPrompt()
	assert.NoError(t, err)
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{name: "unknown ratio", mutate: func(s *Settings) { s.AspectRatio = "2:1" }, wantErr: `unsupported aspect ratio "2:1"`},
		{name: "unknown mode", mutate: func(s *Settings) { s.PromptMode = "yaml" }, wantErr: `unsupported prompt mode "yaml"`},
		{name: "creativity too high", mutate: func(s *Settings) { s.Creativity = 1.01 }, wantErr: "creativity must be between 0 and 1"},
		{name: "creativity negative", mutate: func(s *Settings) { s.Creativity = -0.1 }, wantErr: "creativity must be between 0 and 1"},
		{name: "zero creativity", mutate: func(s *Settings) { s.Creativity = 0 }},
		{name: "empty prompt", mutate: func(s *Settings) { s.Prompt = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAspectRatioTagIsRegistered(t *testing.T) {
	var v interface{ Struct(any) error }
	require.NotPanics(t, func() { v = newValidator() })

	s := DefaultSettings()
	require.NoError(t, v.Struct(s))
	s.AspectRatio = "2:1"
	assert.Error(t, v.Struct(s))
}

func TestSettingsApplyLeavesNilFields(t *testing.T) {
	s := DefaultSettings()
	mode := PromptModeJSON
	prompt := "neon"

	got := s.Apply(SettingsPatch{PromptMode: &mode, Prompt: &prompt})
	assert.Equal(t, PromptModeJSON, got.PromptMode)
	assert.Equal(t, "neon", got.Prompt)
	assert.Equal(t, s.AspectRatio, got.AspectRatio)
	assert.Equal(t, s.JSONPrompt, got.JSONPrompt)
	assert.Equal(t, s.Creativity, got.Creativity)
	assert.Equal(t, DefaultPrompt, s.Prompt)
}

func TestEffectivePrompt(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, DefaultPrompt, s.EffectivePrompt())

	s.PromptMode = PromptModeJSON
	assert.Equal(t, DefaultJSONPrompt, s.EffectivePrompt())
}

func TestParseEnums(t *testing.T) {
	ar, ok := ParseAspectRatio(" 16:9 ")
	require.True(t, ok)
	assert.Equal(t, AspectRatioWide, ar)
	_, ok = ParseAspectRatio("21:9")
	assert.False(t, ok)

	mode, ok := ParsePromptMode("Structured")
	require.True(t, ok)
	assert.Equal(t, PromptModeJSON, mode)
	mode, ok = ParsePromptMode("text")
	require.True(t, ok)
	assert.Equal(t, PromptModeText, mode)

	theme, ok := ParseTheme("Mariana")
	require.True(t, ok)
	assert.Equal(t, ThemeMariana, theme)
	assert.Equal(t, "Mariana", theme.Name())
	_, ok = ParseTheme("solarized")
	assert.False(t, ok)
}

func TestCatalog(t *testing.T) {
	keys := func(opts []NamedOption) []string {
		out := make([]string, 0, len(opts))
		for _, o := range opts {
			out = append(out, o.Key)
		}
		return out
	}
	assert.Equal(t, []string{"9:16", "1:1", "16:9", "3:4", "4:3"}, keys(AspectRatios()))
	assert.Equal(t, []string{"plain_text", "json"}, keys(PromptModes()))
	assert.Equal(t, []string{"default", "dark", "mariana"}, keys(Themes()))
	assert.Len(t, PlaceholderAdvice(), AdviceCount)
}
