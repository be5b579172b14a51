package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config is invalid: %v", err)
	}
	if cfg.Generation.Temperature != 0.1 || cfg.Generation.TopK != 1 || cfg.Generation.MaxOutputTokens != 16 {
		t.Errorf("Unexpected generation defaults: %+v", cfg.Generation)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"unknown source", func(c *Config) { c.Camera.Source = "scanner" }, "camera.source"},
		{"file without path", func(c *Config) { c.Camera.Path = "" }, "camera.path"},
		{"url without scheme", func(c *Config) { c.Camera.Source = "url"; c.Camera.URL = "camera.local" }, "camera.url"},
		{"odd rotation", func(c *Config) { c.Camera.Rotation = 45 }, "camera.rotation"},
		{"zero min size", func(c *Config) { c.Camera.MinImageSize = 0 }, "camera.min_image_size"},
		{"unknown backend", func(c *Config) { c.Backend.Type = "tesseract" }, "backend.type"},
		{"zero timeout", func(c *Config) { c.Backend.TimeoutSeconds = 0 }, "backend.timeout_seconds"},
		{"hot temperature", func(c *Config) { c.Generation.Temperature = 3 }, "generation.temperature"},
		{"bad quality", func(c *Config) { c.Generation.Quality = 0 }, "generation.quality"},
		{"bad debug format", func(c *Config) { c.Debug.Format = "gif" }, "debug.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Expected error mentioning %q, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestLoadFromFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"camera": {"source": "webcam", "device_id": 2, "rotation": 270}, "backend": {"type": "ollama"}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Camera.Source != "webcam" || cfg.Camera.DeviceID != 2 || cfg.Camera.Rotation != 270 {
		t.Errorf("Camera section not loaded: %+v", cfg.Camera)
	}
	if cfg.Backend.Type != "ollama" {
		t.Errorf("Expected ollama backend, got %s", cfg.Backend.Type)
	}
	if cfg.Backend.OllamaURL != "http://localhost:11434" {
		t.Errorf("Expected default ollama URL, got %s", cfg.Backend.OllamaURL)
	}
	if cfg.Generation.Quality != 85 {
		t.Errorf("Expected default quality, got %d", cfg.Generation.Quality)
	}
}

func TestLoadFromFileInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte("{not json"), 0644)

	if _, err := LoadFromFile(path); err == nil {
		t.Error("Expected parse error")
	}
}

func TestLoadAppliesEnv(t *testing.T) {
	t.Setenv("WATCH_BACKEND_TYPE", "llamacpp")
	t.Setenv("WATCH_BACKEND_MODEL", "minicpm-v")
	t.Setenv("WATCH_CAMERA_ROTATION", "90")
	t.Setenv("WATCH_GENERATION_TEMPERATURE", "0.3")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Backend.Type != "llamacpp" || cfg.Backend.Model != "minicpm-v" {
		t.Errorf("Backend env not applied: %+v", cfg.Backend)
	}
	if cfg.Camera.Rotation != 90 {
		t.Errorf("Expected rotation 90, got %d", cfg.Camera.Rotation)
	}
	if cfg.Generation.Temperature != 0.3 {
		t.Errorf("Expected temperature 0.3, got %v", cfg.Generation.Temperature)
	}
	if cfg.Camera.Source != "file" {
		t.Errorf("Unset variables must keep defaults, got source %q", cfg.Camera.Source)
	}
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	t.Setenv("WATCH_CAMERA_SOURCE", "scanner")

	if _, err := Load(""); err == nil {
		t.Error("Expected validation error")
	}
}

func TestLoadUnvalidatedAllowsLaterOverride(t *testing.T) {
	t.Setenv("WATCH_CAMERA_SOURCE", "url")

	if _, err := Load(""); err == nil {
		t.Fatal("Expected Load to reject url source without a URL")
	}

	cfg, err := LoadUnvalidated("")
	if err != nil {
		t.Fatalf("LoadUnvalidated failed: %v", err)
	}
	if cfg.Camera.Source != "url" {
		t.Errorf("Expected env source url, got %s", cfg.Camera.Source)
	}

	cfg.Camera.URL = "http://camera.local/snapshot.jpg"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected config to validate after override, got %v", err)
	}
}

func TestDefaultMinImageSize(t *testing.T) {
	if got := Default().Camera.MinImageSize; got != 1 {
		t.Errorf("Expected default min_image_size 1, got %d", got)
	}
}

func TestSaveToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Default()
	cfg.Camera.Rotation = 180

	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Camera.Rotation != 180 {
		t.Errorf("Expected rotation 180, got %d", loaded.Camera.Rotation)
	}
}

func TestGetConfigPath(t *testing.T) {
	if !strings.HasSuffix(GetConfigPath(), "config.json") {
		t.Errorf("Unexpected config path: %s", GetConfigPath())
	}
}
