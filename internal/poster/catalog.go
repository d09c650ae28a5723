package poster

import "strings"

type NamedOption struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type Theme string

const (
	ThemeDefault Theme = "default"
	ThemeDark    Theme = "dark"
	ThemeMariana Theme = "mariana"
)

var aspectRatios = []AspectRatio{
	AspectRatioStory,
	AspectRatioSquare,
	AspectRatioWide,
	AspectRatioPortrait,
	AspectRatioLandscape,
}

var themes = []NamedOption{
	{Key: string(ThemeDefault), Name: "Default"},
	{Key: string(ThemeDark), Name: "Dark"},
	{Key: string(ThemeMariana), Name: "Mariana"},
}

func AspectRatios() []NamedOption {
	out := make([]NamedOption, 0, len(aspectRatios))
	for _, ar := range aspectRatios {
		out = append(out, NamedOption{Key: string(ar), Name: string(ar)})
	}
	return out
}

func PromptModes() []NamedOption {
	return []NamedOption{
		{Key: string(PromptModeText), Name: "Plain Text"},
		{Key: string(PromptModeJSON), Name: "JSON"},
	}
}

func Themes() []NamedOption {
	out := make([]NamedOption, len(themes))
	copy(out, themes)
	return out
}

func ParseTheme(value string) (Theme, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, t := range themes {
		if t.Key == value {
			return Theme(t.Key), true
		}
	}
	return "", false
}

func (t Theme) Name() string {
	for _, o := range themes {
		if o.Key == string(t) {
			return o.Name
		}
	}
	return string(t)
}

const DefaultPrompt = "A photorealistic shot of the product on a marble slab, with dramatic studio lighting and a lush green plant in the background."

const DefaultJSONPrompt = `{
  "concept": "futuristic luxury theme",
  "style": "cinematic lighting, deep contrast",
  "color_palette": [
    "#0D0D0D",
    "#FFB300",
    "#00B3FF"
  ],
  "composition": "center product with diagonal light beams",
  "text_overlay": {
    "headline": "LIMITED DROP",
    "font": "Poppins Bold",
    "color": "#FFD700"
  }
}`

var placeholderAdvice = []string{
	"Try adding a cinematic rim light to the product edges.",
	"Reduce saturation for a more premium, sophisticated tone.",
	"Emphasize the product reflection to enhance realism.",
	"Add subtle motion blur to the background for focus depth.",
}

func PlaceholderAdvice() []string {
	return append([]string(nil), placeholderAdvice...)
}

func DefaultSettings() Settings {
	return Settings{
		AspectRatio: AspectRatioSquare,
		PromptMode:  PromptModeText,
		Prompt:      DefaultPrompt,
		JSONPrompt:  DefaultJSONPrompt,
		Creativity:  1.0,
	}
}
