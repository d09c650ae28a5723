package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"visioncraft/internal/imagefile"
	"visioncraft/internal/poster"
)

const (
	modelText  = "gemini-2.5-flash"
	modelImage = "gemini-2.5-flash-image"

	defaultBaseURL = "https://generativelanguage.googleapis.com"
)

type Options struct {
	APIKey     string
	BaseURL    string
	// APIVersion is used by the REST image calls only; the SDK text model
	// keeps its own version.
	APIVersion string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// ImageOptions tunes an image-output request.
type ImageOptions struct {
	AspectRatio string
	Temperature *float64
}

// Client talks to the generateContent REST endpoint. It is used for the
// image-output calls.
type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *slog.Logger
}

var ErrNoAPIKey = errors.New("GEMINI_API_KEY is not set")

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		httpClient: httpClient,
		logger:     logger,
	}
}

// EditImage sends one image plus an instruction to the image model and
// returns the first image in the answer, or nil when the model only replied
// with text.
func (c *Client) EditImage(ctx context.Context, prompt string, img poster.Image, opts ImageOptions) (*poster.Image, Response, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, Response{}, errors.New("prompt is empty")
	}
	if img.IsZero() {
		return nil, Response{}, errors.New("image is empty")
	}

	req := generateContentRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &blob{Data: img.Base64(), MimeType: img.MimeType}},
				{Text: prompt},
			},
		}},
		GenerationConfig: generationConfig{
			Temperature:        opts.Temperature,
			ResponseModalities: []string{"IMAGE", "TEXT"},
		},
	}
	if ar := strings.TrimSpace(opts.AspectRatio); ar != "" {
		req.GenerationConfig.ImageConfig = &imageConfig{AspectRatio: ar}
	}

	resp, err := c.generateContent(ctx, modelImage, req)
	if err != nil && req.GenerationConfig.ImageConfig != nil && isUnknownFieldError(err, "imageConfig") {
		c.logger.Warn("gemini rejected imageConfig, retrying without it", "model", modelImage)
		req.GenerationConfig.ImageConfig = nil
		resp, err = c.generateContent(ctx, modelImage, req)
	}
	if err != nil {
		return nil, Response{}, err
	}

	if len(resp.Images) == 0 {
		return nil, resp, nil
	}
	first := resp.Images[0]
	return &first, resp, nil
}

func (c *Client) generateContent(ctx context.Context, model string, payload generateContentRequest) (Response, error) {
	if c.apiKey == "" {
		return Response{}, ErrNoAPIKey
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return Response{}, fmt.Errorf("gemini API %s: %s", httpResp.Status, strings.TrimSpace(string(rawBody)))
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}

	return c.extractParts(decoded), nil
}

func (c *Client) extractParts(resp generateContentResponse) Response {
	var out Response
	if len(resp.Candidates) == 0 {
		return out
	}
	out.FinishReason = resp.Candidates[0].FinishReason

	var textBuilder strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			textBuilder.WriteString(p.Text)
		}
		if p.InlineData == nil || p.InlineData.Data == "" {
			continue
		}
		img, err := imagefile.FromBase64(p.InlineData.Data, p.InlineData.MimeType)
		if err != nil {
			c.logger.Warn("skipping undecodable inline image", "err", err)
			continue
		}
		out.Images = append(out.Images, img)
	}
	out.Text = strings.TrimSpace(textBuilder.String())
	return out
}

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature        *float64     `json:"temperature,omitempty"`
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

func isUnknownFieldError(err error, field string) bool {
	message := err.Error()
	return strings.Contains(message, "Unknown name") && strings.Contains(message, field)
}
