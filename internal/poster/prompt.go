package poster

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AdviceCount is how many suggestions the advisor asks for.
const AdviceCount = 4

const (
	PlaceholderDescription = "Analyzing product..."
	FallbackDescription    = "the user's uploaded product"
)

const describeInstruction = "Describe the primary subject of this image in a concise phrase, suitable for a product marketing context. For example: 'a red sports car' or 'a pair of white sneakers'."

const removeBackgroundInstruction = `Remove the background from this product photo.
- Keep the product exactly as it is: shape, proportions, colors, materials, label and branding unchanged.
- Replace everything that is not the product with a transparent background (or pure white if transparency is not possible).
- Do not add shadows, reflections, props, text or watermarks.
- Return the edited image only.`

func DescribeInstruction() string {
	return describeInstruction
}

func RemoveBackgroundInstruction() string {
	return removeBackgroundInstruction
}

// BuildPrompt composes the text part of the poster request from the product
// description and the settings.
func BuildPrompt(description string, s Settings) (string, error) {
	instructions := s.Prompt
	if s.PromptMode == PromptModeJSON {
		compact, err := s.CompactJSONPrompt()
		if err != nil {
			return "", err
		}
		instructions = "Using this JSON for creative direction, create a poster: " + compact
	}

	description = strings.TrimSpace(description)
	if description == "" {
		description = FallbackDescription
	}

	var b strings.Builder
	b.Grow(256 + len(description) + len(instructions))
	b.WriteString(fmt.Sprintf("Generate a poster for the following product: \"%s\". ", description))
	b.WriteString(fmt.Sprintf("Creative instructions: \"%s\". ", instructions))
	b.WriteString(fmt.Sprintf("The poster's aspect ratio must be %s. ", s.AspectRatio))
	b.WriteString(fmt.Sprintf("Creativity level: %s%%. ", CreativityPercent(s.Creativity)))
	b.WriteString("Adhere strictly to the creative instructions and aspect ratio.")
	return b.String(), nil
}

func AdvicePrompt(posterPrompt, description string) string {
	return fmt.Sprintf(
		"The user wants to create a poster for a product described as: \"%s\". Their current creative prompt is: \"%s\". Provide %d actionable, specific, and creative suggestions to improve their poster concept. Format the response as a JSON array of strings.",
		description, posterPrompt, AdviceCount,
	)
}

// CreativityPercent renders a [0,1] creativity level as a whole percentage.
func CreativityPercent(creativity float64) string {
	return strconv.Itoa(int(math.Round(creativity * 100)))
}
