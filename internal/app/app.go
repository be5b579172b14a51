package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	watchreader "github.com/menta2k/watch-reader"
	"github.com/menta2k/watch-reader/internal/config"
	"github.com/menta2k/watch-reader/internal/logger"
	"github.com/menta2k/watch-reader/internal/metrics"
	"github.com/menta2k/watch-reader/internal/server"
	"github.com/menta2k/watch-reader/pkg/capture"
	"github.com/menta2k/watch-reader/pkg/client"
	"github.com/menta2k/watch-reader/pkg/gemini"
	"github.com/menta2k/watch-reader/pkg/llamacpp"
	"github.com/menta2k/watch-reader/pkg/ollama"
	"github.com/menta2k/watch-reader/pkg/processing"
	"github.com/menta2k/watch-reader/pkg/status"
	"github.com/menta2k/watch-reader/pkg/timereader"
	"github.com/menta2k/watch-reader/pkg/types"
)

// App wires the reader, the HTTP surface and the metrics registry
type App struct {
	cfg      *config.Config
	log      *logger.Logger
	reader   *watchreader.Reader
	registry *prometheus.Registry
}

// NewVisionClient creates the backend selected in cfg
func NewVisionClient(ctx context.Context, cfg config.BackendConfig) (client.VisionClient, error) {
	switch cfg.Type {
	case "gemini":
		c, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return c, nil
	case "ollama":
		c, err := ollama.NewClient(cfg.OllamaURL, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return c, nil
	case "llamacpp":
		c, err := llamacpp.NewClient(cfg.LlamaCppURL, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown backend: %s (use 'gemini', 'ollama' or 'llamacpp')", cfg.Type)
	}
}

// New assembles the application around an already created camera and backend
func New(cfg *config.Config, camera capture.Camera, vision client.VisionClient, log *logger.Logger) *App {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	adapter := capture.NewAdapter(camera,
		capture.WithProcessor(processing.NewProcessorWithMinSize(cfg.Camera.MinImageSize)),
		capture.WithPreviewInterval(time.Duration(cfg.Camera.PreviewIntervalMS)*time.Millisecond),
		capture.WithPreviewErrorHandler(func(err error) {
			log.Warning("Preview frame failed: %v", err)
		}),
	)

	params := types.GenerationParams{
		Temperature:     cfg.Generation.Temperature,
		TopK:            cfg.Generation.TopK,
		CandidateCount:  cfg.Generation.CandidateCount,
		MaxOutputTokens: cfg.Generation.MaxOutputTokens,
	}
	timeClient := timereader.NewClient(vision,
		timereader.WithParams(params),
		timereader.WithEncoding(cfg.Generation.ImageFormat, cfg.Generation.MaxDim, cfg.Generation.Quality),
	)

	opts := []watchreader.Option{
		watchreader.WithLogger(log),
		watchreader.WithMetrics(metrics.New(registry)),
		watchreader.WithCycleTimeout(time.Duration(cfg.Backend.TimeoutSeconds) * time.Second),
	}
	if cfg.Debug.SnapshotDir != "" {
		opts = append(opts, watchreader.WithDebugSnapshots(cfg.Debug.SnapshotDir, cfg.Debug.Format))
	}

	return &App{
		cfg:      cfg,
		log:      log,
		reader:   watchreader.New(adapter, timeClient, status.NewDisplay(), opts...),
		registry: registry,
	}
}

// Reader returns the underlying reader
func (a *App) Reader() *watchreader.Reader {
	return a.reader
}

// ReadOnce binds the camera without preview, runs a single cycle and releases everything
func (a *App) ReadOnce(ctx context.Context) (types.TimeReading, error) {
	defer a.reader.Close()

	if err := a.reader.Start(ctx, nil); err != nil {
		return types.NewFailure(err.Error()), err
	}
	return a.reader.Read(ctx)
}

// Run serves the UI until ctx is done, the process receives SIGINT/SIGTERM or the server fails
func (a *App) Run(ctx context.Context) error {
	defer a.reader.Close()

	group, ctx := errgroup.WithContext(ctx)

	hub := server.NewHub(a.log)
	unsubscribe := a.reader.Display().Subscribe(hub.PublishStatus)
	defer unsubscribe()

	srv := server.New(a.reader, hub, a.registry, a.log)

	group.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	group.Go(func() error {
		return srv.Run(ctx, a.cfg.Server.Listen)
	})

	group.Go(func() error {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(interrupt)

		select {
		case s := <-interrupt:
			a.log.Info("app - Run - signal: %s", s.String())
			return errShutdown
		case <-ctx.Done():
			return nil
		}
	})

	// a binding failure is already on the display; keep serving so it can be seen
	if err := a.reader.Start(ctx, hub); err != nil {
		a.log.Error("app - Run - reader.Start: %v", err)
	}

	err := group.Wait()
	if errors.Is(err, errShutdown) {
		return nil
	}
	return err
}

var errShutdown = errors.New("shutdown requested")
