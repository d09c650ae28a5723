package poster

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type AspectRatio string

const (
	AspectRatioStory     AspectRatio = "9:16"
	AspectRatioSquare    AspectRatio = "1:1"
	AspectRatioWide      AspectRatio = "16:9"
	AspectRatioPortrait  AspectRatio = "3:4"
	AspectRatioLandscape AspectRatio = "4:3"
)

type PromptMode string

const (
	PromptModeText PromptMode = "plain_text"
	PromptModeJSON PromptMode = "json"
)

// Settings is everything the control panel collects besides the image itself.
type Settings struct {
	AspectRatio AspectRatio `json:"aspect_ratio" yaml:"aspect_ratio" validate:"aspect_ratio"`
	PromptMode  PromptMode  `json:"prompt_mode" yaml:"prompt_mode" validate:"oneof=plain_text json"`
	Prompt      string      `json:"prompt" yaml:"prompt"`
	JSONPrompt  string      `json:"json_prompt" yaml:"json_prompt"`
	Creativity  float64     `json:"creativity" yaml:"creativity" validate:"gte=0,lte=1"`
}

// SettingsPatch carries a partial settings change; nil fields are left alone.
type SettingsPatch struct {
	AspectRatio *AspectRatio `json:"aspect_ratio,omitempty"`
	PromptMode  *PromptMode  `json:"prompt_mode,omitempty"`
	Prompt      *string      `json:"prompt,omitempty"`
	JSONPrompt  *string      `json:"json_prompt,omitempty"`
	Creativity  *float64     `json:"creativity,omitempty"`
}

var ErrInvalidJSONPrompt = errors.New("structured prompt is not valid JSON")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("aspect_ratio", func(fl validator.FieldLevel) bool {
		_, ok := ParseAspectRatio(fl.Field().String())
		return ok
	})
	if err != nil {
		panic(err)
	}
	return v
}

func (s Settings) Apply(p SettingsPatch) Settings {
	if p.AspectRatio != nil {
		s.AspectRatio = *p.AspectRatio
	}
	if p.PromptMode != nil {
		s.PromptMode = *p.PromptMode
	}
	if p.Prompt != nil {
		s.Prompt = *p.Prompt
	}
	if p.JSONPrompt != nil {
		s.JSONPrompt = *p.JSONPrompt
	}
	if p.Creativity != nil {
		s.Creativity = *p.Creativity
	}
	return s
}

func (s Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Field() {
		case "AspectRatio":
			msgs = append(msgs, fmt.Sprintf("unsupported aspect ratio %q", fe.Value()))
		case "PromptMode":
			msgs = append(msgs, fmt.Sprintf("unsupported prompt mode %q", fe.Value()))
		case "Creativity":
			msgs = append(msgs, "creativity must be between 0 and 1")
		default:
			msgs = append(msgs, fe.Error())
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// EffectivePrompt is the prompt text for the current mode, as the user typed it.
func (s Settings) EffectivePrompt() string {
	if s.PromptMode == PromptModeJSON {
		return s.JSONPrompt
	}
	return s.Prompt
}

// CompactJSONPrompt checks the structured prompt and returns it without insignificant whitespace.
func (s Settings) CompactJSONPrompt() (string, error) {
	raw := strings.TrimSpace(s.JSONPrompt)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidJSONPrompt)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(raw)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidJSONPrompt, err)
	}
	return buf.String(), nil
}

func ParseAspectRatio(value string) (AspectRatio, bool) {
	value = strings.TrimSpace(value)
	for _, ar := range aspectRatios {
		if string(ar) == value {
			return ar, true
		}
	}
	return "", false
}

func ParsePromptMode(value string) (PromptMode, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "plain_text", "text", "plain":
		return PromptModeText, true
	case "json", "structured":
		return PromptModeJSON, true
	}
	return "", false
}
