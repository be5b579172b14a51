package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	watchreader "github.com/menta2k/watch-reader"
	"github.com/menta2k/watch-reader/internal/app"
	"github.com/menta2k/watch-reader/internal/config"
	"github.com/menta2k/watch-reader/internal/logger"
)

// geminiAPIKey is injected at build time:
//
//	go build -ldflags "-X main.geminiAPIKey=$GEMINI_API_KEY" ./cmd/watch-reader
var geminiAPIKey string

func main() {
	var configPath, backend, model, serverURL string
	var source, cameraArg, listen, debugDir, logDir string
	var rotation int
	var once, version bool

	flag.StringVar(&configPath, "config", config.GetConfigPath(), "configuration file (JSON)")
	flag.StringVar(&backend, "backend", "gemini", "backend to use: gemini, ollama or llamacpp")
	flag.StringVar(&model, "model", "", "model name (defaults: gemini=gemini-2.5-flash, ollama=openbmb/minicpm-v4.5)")
	flag.StringVar(&serverURL, "url", "", "server URL for ollama/llamacpp (defaults: ollama=http://localhost:11434, llamacpp=http://localhost:8080)")
	flag.StringVar(&source, "source", "file", "camera source: file, url, udp or webcam")
	flag.StringVar(&cameraArg, "camera", "", "camera location: file or directory, snapshot URL, UDP listen address or device index")
	flag.IntVar(&rotation, "rotation", 0, "clockwise mount rotation of the camera in degrees (0, 90, 180, 270)")
	flag.BoolVar(&once, "once", false, "take one reading, print it and exit")
	flag.StringVar(&listen, "listen", ":8090", "HTTP listen address for the UI")
	flag.StringVar(&debugDir, "debug-dir", "", "write annotated stills to this directory")
	flag.StringVar(&logDir, "log-dir", "", "also write logs to this directory")
	flag.BoolVar(&version, "version", false, "print version and exit")
	flag.Parse()

	if version {
		fmt.Println(watchreader.Version)
		return
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			log.Fatalf("config error: %s", err)
		}
	}

	// flags below may repair file or env values, so validate only once they are applied
	cfg, err := config.LoadUnvalidated(configPath)
	if err != nil {
		log.Fatalf("Config error: %s", err)
	}

	// explicitly set flags win over the file and the environment
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["backend"] {
		cfg.Backend.Type = backend
	}
	if set["model"] {
		cfg.Backend.Model = model
	}
	if set["url"] {
		if cfg.Backend.Type == "ollama" {
			cfg.Backend.OllamaURL = serverURL
		} else {
			cfg.Backend.LlamaCppURL = serverURL
		}
	}
	if set["source"] {
		cfg.Camera.Source = source
	}
	if set["camera"] {
		applyCameraArg(cfg, cameraArg)
	}
	if set["rotation"] {
		cfg.Camera.Rotation = rotation
	}
	if set["listen"] {
		cfg.Server.Listen = listen
	}
	if set["debug-dir"] {
		cfg.Debug.SnapshotDir = debugDir
	}
	if set["log-dir"] {
		cfg.Log.Dir = logDir
	}
	if geminiAPIKey != "" {
		cfg.Backend.GeminiAPIKey = geminiAPIKey
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("usage: %s [-source file|url|udp|webcam] [-camera location] [-backend gemini|ollama|llamacpp] [-once]: %v", filepath.Base(os.Args[0]), err)
	}

	l, err := logger.New(cfg.Log.Dir)
	if err != nil {
		log.Fatal(err)
	}
	defer l.Close()

	ctx := context.Background()

	camera, err := newCamera(cfg.Camera)
	if err != nil {
		log.Fatalf("Failed to create camera: %v", err)
	}

	visionClient, err := app.NewVisionClient(ctx, cfg.Backend)
	if err != nil {
		log.Fatal(err)
	}
	l.Info("Using %s backend with camera %s", visionClient.Name(), camera.Name())

	a := app.New(cfg, camera, visionClient, l)

	if once {
		reading, err := a.ReadOnce(ctx)
		fmt.Println(reading.Display())
		if err != nil || !reading.OK() {
			os.Exit(1)
		}
		return
	}

	if err := a.Run(ctx); err != nil {
		l.Error("app - Run: %v", err)
		os.Exit(1)
	}
}

func applyCameraArg(cfg *config.Config, arg string) {
	switch cfg.Camera.Source {
	case "url":
		cfg.Camera.URL = arg
	case "udp":
		cfg.Camera.UDPAddr = arg
	case "webcam":
		if id, err := strconv.Atoi(arg); err == nil {
			cfg.Camera.DeviceID = id
		}
	default:
		cfg.Camera.Path = arg
	}
}
