// Package watchreader reads the time off an analog watch with a camera and a
// multimodal model.
//
// A Reader owns one camera binding, one vision backend and one status display.
// Every cycle shows "Thinking...", captures a still, rotates it upright, asks
// the model for the time and replaces the indicator with either
// "Time: <answer>" or "Error: <message>".
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		watchreader "github.com/menta2k/watch-reader"
//		"github.com/menta2k/watch-reader/pkg/camera"
//		"github.com/menta2k/watch-reader/pkg/capture"
//		"github.com/menta2k/watch-reader/pkg/gemini"
//		"github.com/menta2k/watch-reader/pkg/status"
//		"github.com/menta2k/watch-reader/pkg/timereader"
//	)
//
//	func main() {
//		ctx := context.Background()
//
//		backend, err := gemini.NewClient(ctx, apiKey, gemini.DefaultModel)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		reader := watchreader.New(
//			capture.NewAdapter(camera.NewFileCamera("watch.jpg", 90)),
//			timereader.NewClient(backend),
//			status.NewDisplay(),
//		)
//		defer reader.Close()
//
//		if err := reader.Start(ctx, nil); err != nil {
//			log.Fatal(err)
//		}
//
//		reading, err := reader.Read(ctx)
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(reading.Display())
//	}
//
// The package consists of these components:
//
// 1. Capture (pkg/capture, pkg/camera): camera binding, preview and still capture
// 2. Time reading (pkg/timereader): prompt, model call and result mapping
// 3. Backends (pkg/gemini, pkg/ollama, pkg/llamacpp): vision model clients
// 4. Status (pkg/status): the single line of text shown to the user
package watchreader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/menta2k/watch-reader/internal/logger"
	"github.com/menta2k/watch-reader/internal/metrics"
	"github.com/menta2k/watch-reader/internal/utils"
	"github.com/menta2k/watch-reader/pkg/capture"
	"github.com/menta2k/watch-reader/pkg/processing"
	"github.com/menta2k/watch-reader/pkg/status"
	"github.com/menta2k/watch-reader/pkg/timereader"
	"github.com/menta2k/watch-reader/pkg/types"
)

// Version of the watch reader
const Version = "1.0.0"

var (
	// ErrBusy is returned when a trigger arrives while a cycle is in flight
	ErrBusy = errors.New("a reading is already in progress")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("reader is closed")
)

// Reader runs reading cycles: capture, analyze, display
type Reader struct {
	adapter   *capture.Adapter
	client    *timereader.Client
	display   *status.Display
	processor *processing.Processor
	log       *logger.Logger
	metrics   *metrics.Metrics

	debugDir     string
	debugFormat  string
	cycleTimeout time.Duration

	busy atomic.Bool

	mu     sync.Mutex // guards closed and wg.Add
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Reader
type Option func(*Reader)

// WithLogger sets the logger; the default discards output
func WithLogger(l *logger.Logger) Option {
	return func(r *Reader) {
		r.log = l
	}
}

// WithMetrics sets the metrics collectors
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reader) {
		r.metrics = m
	}
}

// WithDebugSnapshots writes every analyzed still, annotated with the reading, to dir
func WithDebugSnapshots(dir, format string) Option {
	return func(r *Reader) {
		r.debugDir = dir
		if format != "" {
			r.debugFormat = format
		}
	}
}

// WithCycleTimeout bounds every cycle, capture and model call included
func WithCycleTimeout(d time.Duration) Option {
	return func(r *Reader) {
		r.cycleTimeout = d
	}
}

// New creates a Reader from its three collaborators
func New(adapter *capture.Adapter, client *timereader.Client, display *status.Display, opts ...Option) *Reader {
	r := &Reader{
		adapter:     adapter,
		client:      client,
		display:     display,
		processor:   processing.NewProcessor(),
		log:         logger.Discard(),
		metrics:     metrics.New(nil),
		debugFormat: "jpg",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Display returns the status surface of the reader
func (r *Reader) Display() *status.Display {
	return r.display
}

// Busy reports whether a cycle is in flight
func (r *Reader) Busy() bool {
	return r.busy.Load()
}

// Start binds the camera and streams preview frames to sink, which may be nil.
// A binding failure is shown on the display and returned.
func (r *Reader) Start(ctx context.Context, sink capture.FrameSink) error {
	if r.isClosed() {
		return ErrClosed
	}

	if err := r.adapter.StartPreview(ctx, sink); err != nil {
		r.log.Error("Failed to start camera %s: %v", r.adapter.CameraName(), err)
		r.metrics.RecordFault(capture.Kind(err))
		r.display.Fail(err)
		return err
	}

	r.log.Info("Camera %s bound", r.adapter.CameraName())
	return nil
}

// Read runs one cycle and waits for it. Capture and model faults are reported
// through the returned reading; the error is only ErrBusy or ErrClosed.
func (r *Reader) Read(ctx context.Context) (types.TimeReading, error) {
	cycleID, err := r.reserve()
	if err != nil {
		return types.TimeReading{}, err
	}
	defer r.release()

	return r.runCycle(ctx, cycleID), nil
}

// Trigger starts one cycle in the background and returns its id
func (r *Reader) Trigger(ctx context.Context) (string, error) {
	cycleID, err := r.reserve()
	if err != nil {
		return "", err
	}

	go func() {
		defer r.release()
		r.runCycle(ctx, cycleID)
	}()

	return cycleID, nil
}

// Close waits for a running cycle, releases the camera and disposes the display
func (r *Reader) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.wg.Wait()
	err := r.adapter.Release()
	r.display.Close()
	return err
}

func (r *Reader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Reader) reserve() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", ErrClosed
	}
	if !r.busy.CompareAndSwap(false, true) {
		r.metrics.RecordCycle(metrics.OutcomeBusy)
		return "", ErrBusy
	}
	r.wg.Add(1)
	return uuid.NewString(), nil
}

func (r *Reader) release() {
	r.busy.Store(false)
	r.wg.Done()
}

func (r *Reader) runCycle(ctx context.Context, cycleID string) types.TimeReading {
	if r.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cycleTimeout)
		defer cancel()
	}

	r.display.Begin(cycleID)
	r.log.Info("Cycle %s started", cycleID)

	start := time.Now()
	img, err := r.adapter.CaptureStill(ctx)
	r.metrics.RecordCapture(time.Since(start).Seconds())
	if err != nil {
		reading := types.NewFailure(err.Error())
		r.log.Error("Cycle %s: %v", cycleID, err)
		r.metrics.RecordFault(capture.Kind(err))
		r.finish(cycleID, reading)
		return reading
	}

	start = time.Now()
	reading := r.client.Analyze(ctx, img)
	r.metrics.RecordModel(r.client.Backend(), time.Since(start).Seconds())

	if reading.OK() {
		r.metrics.RecordClockFormat(timereader.MatchesClockFormat(reading.Text))
		r.log.Info("Cycle %s: model answered %q", cycleID, reading.Text)
	} else {
		r.metrics.RecordFault("model")
		r.log.Error("Cycle %s: model fault: %s", cycleID, reading.Failure)
	}

	if r.debugDir != "" {
		r.saveSnapshot(cycleID, img, reading)
	}

	r.finish(cycleID, reading)
	return reading
}

func (r *Reader) finish(cycleID string, reading types.TimeReading) {
	outcome := metrics.OutcomeTime
	if !reading.OK() {
		outcome = metrics.OutcomeFailure
	}
	r.metrics.RecordCycle(outcome)

	if !r.display.Finish(cycleID, reading) {
		r.log.Warning("Cycle %s: display no longer accepts updates", cycleID)
	}
}

func (r *Reader) saveSnapshot(cycleID string, img types.CapturedImage, reading types.TimeReading) {
	if err := utils.EnsureDir(r.debugDir); err != nil {
		r.log.Warning("Failed to create debug directory: %v", err)
		return
	}

	path := utils.SnapshotFilename(r.debugDir, cycleID, r.debugFormat, img.CapturedAt)
	annotated := r.processor.Annotate(img.Image, reading.Display())
	if err := r.processor.SaveImage(annotated, path, r.debugFormat, 90, false); err != nil {
		r.log.Warning("Failed to save debug snapshot: %v", err)
		return
	}
	r.log.Info("Cycle %s: snapshot saved to %s", cycleID, path)
}
