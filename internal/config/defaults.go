package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"visioncraft/internal/poster"
	"visioncraft/internal/studio"
)

// defaultsFile is the YAML layout of STUDIO_DEFAULTS. Every key is optional.
//
//	aspect_ratio: "9:16"
//	prompt_mode: plain_text
//	prompt: "A bottle on wet black stone"
//	json_prompt: |
//	  {"style": "noir"}
//	creativity: 0.7
//	theme: mariana
//	advice:
//	  - "Try a lower camera angle."
type defaultsFile struct {
	AspectRatio *string  `yaml:"aspect_ratio"`
	PromptMode  *string  `yaml:"prompt_mode"`
	Prompt      *string  `yaml:"prompt"`
	JSONPrompt  *string  `yaml:"json_prompt"`
	Creativity  *float64 `yaml:"creativity"`
	Theme       *string  `yaml:"theme"`
	Advice      []string `yaml:"advice"`
}

// LoadDefaults returns the built-in studio defaults overlaid with the file at
// path. An empty path means no overrides.
func LoadDefaults(path string) (studio.Defaults, error) {
	defaults := studio.DefaultDefaults()
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return studio.Defaults{}, err
	}
	return ParseDefaults(data, defaults)
}

func ParseDefaults(data []byte, base studio.Defaults) (studio.Defaults, error) {
	var file defaultsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return studio.Defaults{}, fmt.Errorf("parse yaml: %w", err)
	}

	out := base
	var patch poster.SettingsPatch
	if file.AspectRatio != nil {
		ar := poster.AspectRatio(*file.AspectRatio)
		patch.AspectRatio = &ar
	}
	if file.PromptMode != nil {
		mode, ok := poster.ParsePromptMode(*file.PromptMode)
		if !ok {
			return studio.Defaults{}, fmt.Errorf("unsupported prompt mode %q", *file.PromptMode)
		}
		patch.PromptMode = &mode
	}
	patch.Prompt = file.Prompt
	patch.JSONPrompt = file.JSONPrompt
	patch.Creativity = file.Creativity

	out.Settings = base.Settings.Apply(patch)
	if err := out.Settings.Validate(); err != nil {
		return studio.Defaults{}, err
	}

	if file.Theme != nil {
		theme, ok := poster.ParseTheme(*file.Theme)
		if !ok {
			return studio.Defaults{}, fmt.Errorf("unsupported theme %q", *file.Theme)
		}
		out.Theme = theme
	}
	if len(file.Advice) > 0 {
		out.Advice = append([]string(nil), file.Advice...)
	}
	return out, nil
}
