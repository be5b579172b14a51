package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/menta2k/watch-reader/pkg/capture"
	"github.com/menta2k/watch-reader/pkg/types"
)

// URLCamera fetches stills from an HTTP snapshot endpoint, as exposed by most IP cameras
type URLCamera struct {
	snapshotURL string
	rotation    int
	client      *http.Client
	opened      bool
}

// NewURLCamera creates a camera for the given snapshot URL
func NewURLCamera(snapshotURL string, rotation int) (*URLCamera, error) {
	parsedURL, err := url.Parse(snapshotURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	return &URLCamera{
		snapshotURL: snapshotURL,
		rotation:    rotation,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

func (c *URLCamera) Name() string {
	return "url:" + c.snapshotURL
}

// Open probes the endpoint once so that a dead or locked camera fails at bind time
func (c *URLCamera) Open(ctx context.Context) error {
	if _, _, err := c.fetch(ctx); err != nil {
		return err
	}
	c.opened = true
	return nil
}

func (c *URLCamera) Frame(ctx context.Context) ([]byte, error) {
	data, _, err := c.fetch(ctx)
	return data, err
}

func (c *URLCamera) Still(ctx context.Context) (types.RawCapture, error) {
	if !c.opened {
		return types.RawCapture{}, fmt.Errorf("url camera is closed")
	}

	data, contentType, err := c.fetch(ctx)
	if err != nil {
		return types.RawCapture{}, err
	}

	return types.RawCapture{
		Data:            data,
		MIMEType:        contentType,
		RotationDegrees: c.rotation,
		CapturedAt:      time.Now(),
	}, nil
}

func (c *URLCamera) Close() error {
	c.opened = false
	c.client.CloseIdleConnections()
	return nil
}

func (c *URLCamera) fetch(ctx context.Context) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.snapshotURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "watch-reader/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download snapshot: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, "", fmt.Errorf("%w: HTTP %d", capture.ErrPermissionDenied, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, "", fmt.Errorf("failed to download snapshot: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read snapshot: %w", err)
	}

	return data, contentType, nil
}
