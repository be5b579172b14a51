package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/menta2k/watch-reader/pkg/types"
)

// DefaultModel is the hosted model used when none is configured
const DefaultModel = "gemini-2.5-flash"

// ErrMissingAPIKey is returned when the client is built without a key
var ErrMissingAPIKey = errors.New("gemini: API key is empty")

// Client calls the hosted Gemini API through the genai SDK
type Client struct {
	models *genai.Models
	model  string
}

// NewClient creates a Gemini client for the given model
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if model == "" {
		model = DefaultModel
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Client{models: c.Models, model: model}, nil
}

// Name identifies the backend in logs and metrics
func (c *Client) Name() string {
	return "gemini"
}

// Generate sends the image and the prompt as one multi-part user turn
func (c *Client) Generate(ctx context.Context, req types.Request) (types.Response, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
	}

	resp, err := c.models.GenerateContent(ctx, c.model, buildContents(req), buildConfig(req.Params))
	if err != nil {
		return types.Response{}, fmt.Errorf("gemini generate error: %w", err)
	}

	return types.Response{Text: resp.Text()}, nil
}

func buildContents(req types.Request) []*genai.Content {
	mime := req.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(req.Image, mime),
		genai.NewPartFromText(req.Prompt),
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func buildConfig(p types.GenerationParams) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     ptr(p.Temperature),
		CandidateCount:  int32(p.CandidateCount),
		MaxOutputTokens: int32(p.MaxOutputTokens),
	}
	if p.TopK > 0 {
		cfg.TopK = ptr(float32(p.TopK))
	}
	return cfg
}

func ptr[T any](v T) *T {
	return &v
}
