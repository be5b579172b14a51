package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "WATCH_"

// Config holds the application configuration
type Config struct {
	Camera     CameraConfig     `json:"camera" envPrefix:"CAMERA_"`
	Backend    BackendConfig    `json:"backend" envPrefix:"BACKEND_"`
	Generation GenerationConfig `json:"generation" envPrefix:"GENERATION_"`
	Server     ServerConfig     `json:"server" envPrefix:"SERVER_"`
	Debug      DebugConfig      `json:"debug" envPrefix:"DEBUG_"`
	Log        LogConfig        `json:"log" envPrefix:"LOG_"`
}

// CameraConfig selects and configures the camera source
type CameraConfig struct {
	Source            string `json:"source" env:"SOURCE"` // file, url, udp or webcam
	Path              string `json:"path" env:"PATH"`
	URL               string `json:"url" env:"URL"`
	UDPAddr           string `json:"udp_addr" env:"UDP_ADDR"`
	DeviceID          int    `json:"device_id" env:"DEVICE_ID"`
	Rotation          int    `json:"rotation" env:"ROTATION"`
	PreviewIntervalMS int    `json:"preview_interval_ms" env:"PREVIEW_INTERVAL_MS"`
	MinImageSize      int    `json:"min_image_size" env:"MIN_IMAGE_SIZE"`
}

// BackendConfig selects and configures the vision backend
type BackendConfig struct {
	Type           string `json:"type" env:"TYPE"` // gemini, ollama or llamacpp
	Model          string `json:"model" env:"MODEL"`
	GeminiAPIKey   string `json:"gemini_api_key,omitempty" env:"GEMINI_API_KEY"`
	OllamaURL      string `json:"ollama_url" env:"OLLAMA_URL"`
	LlamaCppURL    string `json:"llamacpp_url" env:"LLAMACPP_URL"`
	TimeoutSeconds int    `json:"timeout_seconds" env:"TIMEOUT_SECONDS"`
}

// GenerationConfig holds model parameters and image encoding
type GenerationConfig struct {
	Temperature     float32 `json:"temperature" env:"TEMPERATURE"`
	TopK            int     `json:"top_k" env:"TOP_K"`
	CandidateCount  int     `json:"candidate_count" env:"CANDIDATE_COUNT"`
	MaxOutputTokens int     `json:"max_output_tokens" env:"MAX_OUTPUT_TOKENS"`
	ImageFormat     string  `json:"image_format" env:"IMAGE_FORMAT"`
	MaxDim          int     `json:"max_dim" env:"MAX_DIM"`
	Quality         int     `json:"quality" env:"QUALITY"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Listen string `json:"listen" env:"LISTEN"`
}

// DebugConfig holds the optional snapshot output
type DebugConfig struct {
	SnapshotDir string `json:"snapshot_dir" env:"SNAPSHOT_DIR"`
	Format      string `json:"format" env:"FORMAT"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Dir string `json:"dir" env:"DIR"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Camera: CameraConfig{
			Source:            "file",
			Path:              "./watch.jpg",
			UDPAddr:           ":5005",
			PreviewIntervalMS: 200,
			MinImageSize:      1,
		},
		Backend: BackendConfig{
			Type:           "gemini",
			OllamaURL:      "http://localhost:11434",
			LlamaCppURL:    "http://localhost:8080",
			TimeoutSeconds: 300,
		},
		Generation: GenerationConfig{
			Temperature:     0.1,
			TopK:            1,
			CandidateCount:  1,
			MaxOutputTokens: 16,
			ImageFormat:     "jpeg",
			MaxDim:          1024,
			Quality:         85,
		},
		Server: ServerConfig{
			Listen: ":8090",
		},
		Debug: DebugConfig{
			Format: "jpg",
		},
	}
}

// Load reads the file at filename when it exists, applies WATCH_* environment
// variables on top and validates the result.
func Load(filename string) (*Config, error) {
	cfg, err := LoadUnvalidated(filename)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadUnvalidated layers the file and environment over the defaults without
// validating, so callers can apply further overrides before calling Validate
func LoadUnvalidated(filename string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		loaded, err := LoadFromFile(filename)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a JSON file; missing fields keep their defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// ApplyEnv overrides fields whose WATCH_* variable is set
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Camera.Source {
	case "file":
		if c.Camera.Path == "" {
			return fmt.Errorf("camera.path is required for the file source")
		}
	case "url":
		if !strings.HasPrefix(c.Camera.URL, "http://") && !strings.HasPrefix(c.Camera.URL, "https://") {
			return fmt.Errorf("camera.url must be an http(s) URL for the url source")
		}
	case "udp":
		if c.Camera.UDPAddr == "" {
			return fmt.Errorf("camera.udp_addr is required for the udp source")
		}
	case "webcam":
		if c.Camera.DeviceID < 0 {
			return fmt.Errorf("camera.device_id must not be negative")
		}
	default:
		return fmt.Errorf("camera.source must be one of file, url, udp, webcam (got %q)", c.Camera.Source)
	}

	if c.Camera.Rotation%90 != 0 {
		return fmt.Errorf("camera.rotation must be a multiple of 90")
	}

	if c.Camera.PreviewIntervalMS < 1 {
		return fmt.Errorf("camera.preview_interval_ms must be positive")
	}

	if c.Camera.MinImageSize < 1 {
		return fmt.Errorf("camera.min_image_size must be positive")
	}

	switch c.Backend.Type {
	case "gemini", "ollama", "llamacpp":
	default:
		return fmt.Errorf("backend.type must be one of gemini, ollama, llamacpp (got %q)", c.Backend.Type)
	}

	if c.Backend.TimeoutSeconds < 1 {
		return fmt.Errorf("backend.timeout_seconds must be positive")
	}

	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("generation.temperature must be between 0 and 2")
	}

	if c.Generation.MaxOutputTokens < 1 {
		return fmt.Errorf("generation.max_output_tokens must be positive")
	}

	if c.Generation.Quality < 1 || c.Generation.Quality > 100 {
		return fmt.Errorf("generation.quality must be between 1 and 100")
	}

	switch strings.ToLower(c.Debug.Format) {
	case "jpg", "jpeg", "png", "webp":
	default:
		return fmt.Errorf("debug.format must be one of jpg, png, webp")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "watch-reader", "config.json")
}
