package capture

import (
	"context"
	"sync"
	"time"

	"github.com/menta2k/watch-reader/pkg/processing"
	"github.com/menta2k/watch-reader/pkg/types"
)

// DefaultPreviewInterval is the delay between preview frames
const DefaultPreviewInterval = 200 * time.Millisecond

// Camera is a source of preview frames and still captures.
// Frame and Still are never called concurrently by the Adapter.
type Camera interface {
	Name() string
	Open(ctx context.Context) error
	Frame(ctx context.Context) ([]byte, error) // JPEG preview frame
	Still(ctx context.Context) (types.RawCapture, error)
	Close() error
}

// FrameSink receives live preview frames
type FrameSink interface {
	PreviewFrame(data []byte)
}

// Adapter bridges a Camera to one normalized still image per request
type Adapter struct {
	camera    Camera
	processor *processing.Processor
	interval  time.Duration
	onError   func(error)

	mu    sync.Mutex // guards bound, stop and done
	camMu sync.Mutex // serializes camera calls
	bound bool
	stop  context.CancelFunc
	done  chan struct{}
}

// Option configures an Adapter
type Option func(*Adapter)

// WithPreviewInterval sets the delay between preview frames
func WithPreviewInterval(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithProcessor replaces the default image processor
func WithProcessor(p *processing.Processor) Option {
	return func(a *Adapter) {
		a.processor = p
	}
}

// WithPreviewErrorHandler is called for every preview frame the camera fails to deliver
func WithPreviewErrorHandler(fn func(error)) Option {
	return func(a *Adapter) {
		a.onError = fn
	}
}

// NewAdapter creates an adapter owning the given camera
func NewAdapter(camera Camera, opts ...Option) *Adapter {
	a := &Adapter{
		camera:    camera,
		processor: processing.NewProcessor(),
		interval:  DefaultPreviewInterval,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CameraName returns the name of the owned camera
func (a *Adapter) CameraName() string {
	return a.camera.Name()
}

// Bound reports whether a preview binding is active
func (a *Adapter) Bound() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bound
}

// StartPreview binds the camera and streams preview frames to sink until
// ctx is done or Release is called. A previous binding is released first.
func (a *Adapter) StartPreview(ctx context.Context, sink FrameSink) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.releaseLocked(); err != nil {
		return &BindingError{Camera: a.camera.Name(), Err: err}
	}

	a.camMu.Lock()
	err := a.camera.Open(ctx)
	a.camMu.Unlock()
	if err != nil {
		return &BindingError{Camera: a.camera.Name(), Err: err}
	}
	a.bound = true

	if sink != nil {
		previewCtx, cancel := context.WithCancel(ctx)
		a.stop = cancel
		a.done = make(chan struct{})
		go a.runPreview(previewCtx, sink, a.done)
	}

	return nil
}

// CaptureStill takes one still, decodes it and rotates it upright.
// The returned buffer is owned by the caller.
func (a *Adapter) CaptureStill(ctx context.Context) (types.CapturedImage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.bound {
		return types.CapturedImage{}, ErrNotReady
	}

	a.camMu.Lock()
	raw, err := a.camera.Still(ctx)
	a.camMu.Unlock()
	if err != nil {
		return types.CapturedImage{}, &CaptureError{Cause: "camera did not deliver a still", Err: err}
	}

	if raw.CapturedAt.IsZero() {
		raw.CapturedAt = time.Now()
	}

	captured, err := a.processor.Normalize(raw)
	if err != nil {
		return types.CapturedImage{}, &CaptureError{Cause: "still could not be normalized", Err: err}
	}

	return captured, nil
}

// Release stops the preview and closes the camera. It is safe to call repeatedly.
func (a *Adapter) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.releaseLocked()
}

func (a *Adapter) releaseLocked() error {
	if !a.bound {
		return nil
	}

	if a.stop != nil {
		a.stop()
		<-a.done
		a.stop = nil
		a.done = nil
	}
	a.bound = false

	a.camMu.Lock()
	defer a.camMu.Unlock()
	return a.camera.Close()
}

func (a *Adapter) runPreview(ctx context.Context, sink FrameSink, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		a.camMu.Lock()
		frame, err := a.camera.Frame(ctx)
		a.camMu.Unlock()

		if err != nil {
			if a.onError != nil && ctx.Err() == nil {
				a.onError(err)
			}
			continue
		}
		sink.PreviewFrame(frame)
	}
}
