package types

import (
	"image"
	"strings"
	"time"
)

// UnreadablePlaceholder is shown when the model answers without any text
const UnreadablePlaceholder = "Unable to read"

// UnknownError is used when a fault carries no message
const UnknownError = "Unknown error"

// RawCapture is a still as delivered by a camera, before decoding and rotation
type RawCapture struct {
	Data            []byte
	MIMEType        string
	RotationDegrees int
	CapturedAt      time.Time
}

// CapturedImage is a decoded pixel buffer already rotated to upright orientation
type CapturedImage struct {
	Image      image.Image
	Width      int
	Height     int
	CapturedAt time.Time
}

// TimeReading is either a time estimate or a failure reason, never both
type TimeReading struct {
	Text    string `json:"text,omitempty"`
	Failure string `json:"failure,omitempty"`
}

// NewReading builds a successful reading, substituting the placeholder for empty text
func NewReading(text string) TimeReading {
	text = strings.TrimSpace(text)
	if text == "" {
		text = UnreadablePlaceholder
	}
	return TimeReading{Text: text}
}

// NewFailure builds a failed reading
func NewFailure(msg string) TimeReading {
	if strings.TrimSpace(msg) == "" {
		msg = UnknownError
	}
	return TimeReading{Failure: msg}
}

// OK reports whether the reading carries a time estimate
func (r TimeReading) OK() bool {
	return r.Failure == ""
}

// Display renders the reading with the fixed status templates
func (r TimeReading) Display() string {
	if !r.OK() {
		return "Error: " + r.Failure
	}
	return "Time: " + r.Text
}

// GenerationParams constrains the model towards a short deterministic answer
type GenerationParams struct {
	Temperature     float32 `json:"temperature"`
	TopK            int     `json:"top_k"`
	CandidateCount  int     `json:"candidate_count"`
	MaxOutputTokens int     `json:"max_output_tokens"`
}

// DefaultGenerationParams returns the parameters used when none are configured
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		Temperature:     0.1,
		TopK:            1,
		CandidateCount:  1,
		MaxOutputTokens: 16,
	}
}

// Request is the logical backend request: one prompt and one image
type Request struct {
	Prompt   string
	Image    []byte
	MIMEType string
	Params   GenerationParams
}

// Response carries the model text; empty means the model returned none
type Response struct {
	Text string
}
