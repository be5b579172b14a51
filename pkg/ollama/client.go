package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/watch-reader/pkg/types"
)

// DefaultModel is a small vision model that runs on CPU
const DefaultModel = "openbmb/minicpm-v4.5"

// Client wraps the Ollama API client
type Client struct {
	client *api.Client
	model  string
}

// NewClient creates a new Ollama client
func NewClient(ollamaURL, model string) (*Client, error) {
	// Parse the provided URL
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q needs scheme and host", ollamaURL)
	}

	// Create base URL from the provided URL (removing path like /api/chat)
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	if model == "" {
		model = DefaultModel
	}

	// Create client with the specified URL, ignoring environment
	return &Client{
		client: api.NewClient(baseURL, http.DefaultClient),
		model:  model,
	}, nil
}

// Name identifies the backend in logs and metrics
func (c *Client) Name() string {
	return "ollama"
}

// Generate sends the prompt with the image attached to a single user message
func (c *Client) Generate(ctx context.Context, req types.Request) (types.Response, error) {
	// Add timeout if context doesn't have one (inference on CPU is slow)
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
	}

	streamFalse := false
	chatReq := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: req.Prompt,
				Images:  []api.ImageData{api.ImageData(req.Image)},
			},
		},
		Stream:  &streamFalse,
		Options: buildOptions(req.Params),
	}

	var responseContent string
	err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		responseContent += resp.Message.Content
		return nil
	})
	if err != nil {
		return types.Response{}, fmt.Errorf("ollama chat error: %w", err)
	}

	return types.Response{Text: responseContent}, nil
}

// buildOptions maps generation params onto Ollama runner options.
// Ollama has no candidate count; it always produces one answer.
func buildOptions(p types.GenerationParams) map[string]any {
	options := map[string]any{
		"temperature": p.Temperature,
	}
	if p.TopK > 0 {
		options["top_k"] = p.TopK
	}
	if p.MaxOutputTokens > 0 {
		options["num_predict"] = p.MaxOutputTokens
	}
	return options
}
