package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/watch-reader/pkg/types"
)

func TestNewClientInvalidURL(t *testing.T) {
	if _, err := NewClient("not a url", ""); err == nil {
		t.Error("Expected error for URL without scheme and host")
	}
}

func TestNewClientDefaultModel(t *testing.T) {
	c, err := NewClient("http://localhost:11434/api/chat", "")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.model != DefaultModel {
		t.Errorf("Expected model %s, got %s", DefaultModel, c.model)
	}
	if c.Name() != "ollama" {
		t.Errorf("Expected name ollama, got %s", c.Name())
	}
}

func TestBuildOptions(t *testing.T) {
	opts := buildOptions(types.DefaultGenerationParams())

	if opts["temperature"] != float32(0.1) {
		t.Errorf("Expected temperature 0.1, got %v", opts["temperature"])
	}
	if opts["top_k"] != 1 {
		t.Errorf("Expected top_k 1, got %v", opts["top_k"])
	}
	if opts["num_predict"] != 16 {
		t.Errorf("Expected num_predict 16, got %v", opts["num_predict"])
	}

	opts = buildOptions(types.GenerationParams{Temperature: 0.5})
	if _, ok := opts["top_k"]; ok {
		t.Error("top_k should be omitted when zero")
	}
	if _, ok := opts["num_predict"]; ok {
		t.Error("num_predict should be omitted when zero")
	}
}

func TestGenerate(t *testing.T) {
	var got api.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.ChatResponse{
			Model:   got.Model,
			Message: api.Message{Role: "assistant", Content: "10:10"},
			Done:    true,
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/api/chat", "llava")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	resp, err := c.Generate(context.Background(), types.Request{
		Prompt: "what time",
		Image:  []byte{0xFF, 0xD8, 0xFF, 0xD9},
		Params: types.DefaultGenerationParams(),
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Text != "10:10" {
		t.Errorf("Expected 10:10, got %q", resp.Text)
	}

	if got.Model != "llava" {
		t.Errorf("Expected model llava, got %s", got.Model)
	}
	if len(got.Messages) != 1 || len(got.Messages[0].Images) != 1 {
		t.Fatalf("Expected one message with one image, got %+v", got.Messages)
	}
	if got.Messages[0].Content != "what time" {
		t.Errorf("Unexpected prompt %q", got.Messages[0].Content)
	}
}

func TestGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "llava")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if _, err := c.Generate(context.Background(), types.Request{Prompt: "x"}); err == nil {
		t.Error("Expected error from failing server")
	}
}
