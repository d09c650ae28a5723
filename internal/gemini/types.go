package gemini

import "visioncraft/internal/poster"

type Response struct {
	Text         string
	Images       []poster.Image
	FinishReason string
}
