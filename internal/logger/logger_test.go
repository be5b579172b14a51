package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	l.Info("cycle %s started", "abc")
	l.Warning("slow backend")
	l.Error("capture failed: %v", "timeout")

	out := buf.String()
	for _, want := range []string{"INFO    ", "cycle abc started", "WARNING ", "ERROR   ", "capture failed: timeout"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestNewWithLogDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	l.Error("camera lost")
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "error.log"))
	if err != nil {
		t.Fatalf("Failed to read error.log: %v", err)
	}
	if !strings.Contains(string(data), "camera lost") {
		t.Errorf("error.log missing entry: %s", data)
	}

	for _, name := range []string{"info.log", "warning.log"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected %s to exist: %v", name, err)
		}
	}
}
