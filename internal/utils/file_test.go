package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestIsImageFile(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"watch.jpg", true},
		{"watch.JPEG", true},
		{"dial.webp", true},
		{"notes.txt", false},
		{"noext", false},
	}

	for _, test := range tests {
		if got := IsImageFile(test.name); got != test.expected {
			t.Errorf("IsImageFile(%s) = %v, expected %v", test.name, got, test.expected)
		}
	}
}

func TestMIMETypeFor(t *testing.T) {
	tests := map[string]string{
		"a.png":  "image/png",
		"a.webp": "image/webp",
		"a.jpg":  "image/jpeg",
		"a":      "image/jpeg",
	}
	for name, expected := range tests {
		if got := MIMETypeFor(name); got != expected {
			t.Errorf("MIMETypeFor(%s) = %s, expected %s", name, got, expected)
		}
	}
}

func TestLatestImageFile(t *testing.T) {
	dir := t.TempDir()

	if _, _, err := LatestImageFile(dir); err == nil {
		t.Error("Expected error for empty directory")
	}

	old := filepath.Join(dir, "old.jpg")
	newer := filepath.Join(dir, "new.png")
	other := filepath.Join(dir, "readme.txt")
	for _, p := range []string{old, newer, other} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-time.Hour)
	os.Chtimes(old, past, past)
	future := time.Now().Add(time.Hour)
	os.Chtimes(other, future, future)

	got, _, err := LatestImageFile(dir)
	if err != nil {
		t.Fatalf("LatestImageFile failed: %v", err)
	}
	if got != newer {
		t.Errorf("Expected %s, got %s", newer, got)
	}
}

func TestSnapshotFilename(t *testing.T) {
	at := time.Date(2026, 10, 19, 7, 45, 0, 0, time.UTC)
	got := SnapshotFilename("out", "a/b:c", "", at)

	if !strings.HasPrefix(got, filepath.Join("out", "20261019_074500_")) {
		t.Errorf("Unexpected prefix: %s", got)
	}
	if !strings.HasSuffix(got, "a_b_c.jpg") {
		t.Errorf("Unexpected suffix: %s", got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := SanitizeFilename(" ..a<b>c.. "); got != "a_b_c" {
		t.Errorf("SanitizeFilename = %q", got)
	}
}
