package timereader

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/menta2k/watch-reader/pkg/client"
	"github.com/menta2k/watch-reader/pkg/processing"
	"github.com/menta2k/watch-reader/pkg/types"
)

// Prompt is sent with every captured still
const Prompt = `Analyze this analog watch. What time is shown? Be precise. Return only HH:mm.`

const (
	DefaultImageFormat = "jpeg"
	DefaultMaxDim      = 1024
	DefaultQuality     = 85
)

var clockPattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

// Client turns a captured still into a time reading using one model request
type Client struct {
	vision    client.VisionClient
	processor *processing.Processor
	params    types.GenerationParams
	format    string
	maxDim    int
	quality   int
}

// Option configures a Client
type Option func(*Client)

// WithParams overrides the generation parameters
func WithParams(params types.GenerationParams) Option {
	return func(c *Client) {
		c.params = params
	}
}

// WithEncoding sets how the still is encoded before it is sent
func WithEncoding(format string, maxDim, quality int) Option {
	return func(c *Client) {
		if format != "" {
			c.format = format
		}
		if maxDim > 0 {
			c.maxDim = maxDim
		}
		if quality > 0 {
			c.quality = quality
		}
	}
}

// NewClient creates a time-reading client around a vision backend
func NewClient(vision client.VisionClient, opts ...Option) *Client {
	c := &Client{
		vision:    vision,
		processor: processing.NewProcessor(),
		params:    types.DefaultGenerationParams(),
		format:    DefaultImageFormat,
		maxDim:    DefaultMaxDim,
		quality:   DefaultQuality,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backend returns the name of the underlying vision backend
func (c *Client) Backend() string {
	return c.vision.Name()
}

// Analyze asks the model for the time shown in img. It never returns an error:
// every fault, including a panic inside the backend, becomes a failure reading.
func (c *Client) Analyze(ctx context.Context, img types.CapturedImage) (reading types.TimeReading) {
	defer func() {
		if r := recover(); r != nil {
			reading = types.NewFailure(fmt.Sprint(r))
		}
	}()

	if img.Image == nil {
		return types.NewFailure("no image captured")
	}

	data, mimeType, err := c.processor.PrepareImageForModel(img.Image, c.format, c.maxDim, c.quality)
	if err != nil {
		return types.NewFailure(err.Error())
	}

	resp, err := c.vision.Generate(ctx, types.Request{
		Prompt:   Prompt,
		Image:    data,
		MIMEType: mimeType,
		Params:   c.params,
	})
	if err != nil {
		return types.NewFailure(err.Error())
	}

	return types.NewReading(resp.Text)
}

// MatchesClockFormat reports whether text looks like HH:mm
func MatchesClockFormat(text string) bool {
	return clockPattern.MatchString(strings.TrimSpace(text))
}
