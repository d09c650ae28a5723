package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"visioncraft/internal/poster"
)

// textModel wraps the SDK for calls that answer with text or JSON.
type textModel struct {
	client *genai.Client
	model  string
}

func newTextModel(ctx context.Context, apiKey, baseURL string) (*textModel, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if baseURL != "" && baseURL != defaultBaseURL {
		opts = append(opts, option.WithEndpoint(baseURL))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init genai client: %w", err)
	}
	return &textModel{client: client, model: modelText}, nil
}

func (m *textModel) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}

func (m *textModel) describe(ctx context.Context, img poster.Image) (string, error) {
	model := m.client.GenerativeModel(m.model)

	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: img.MimeType, Data: img.Data},
		genai.Text(poster.DescribeInstruction()),
	)
	if err != nil {
		return "", wrapGenaiError("describe image", err)
	}
	return responseText(resp), nil
}

func (m *textModel) advice(ctx context.Context, posterPrompt, description string) ([]string, error) {
	model := m.client.GenerativeModel(m.model)
	model.SetTemperature(0.8)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = &genai.Schema{
		Type:  genai.TypeArray,
		Items: &genai.Schema{Type: genai.TypeString},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(poster.AdvicePrompt(posterPrompt, description)))
	if err != nil {
		return nil, wrapGenaiError("creative advice", err)
	}
	return parseAdvice(responseText(resp))
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}

func parseAdvice(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty advice response")
	}

	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decode advice: %w", err)
	}

	out := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("advice response has no suggestions")
	}
	return out, nil
}

func wrapGenaiError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fmt.Errorf("%s: gemini API %d: %s", op, gerr.Code, strings.TrimSpace(gerr.Message))
	}
	return fmt.Errorf("%s: %w", op, err)
}
