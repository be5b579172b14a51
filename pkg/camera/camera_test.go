package camera

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/menta2k/watch-reader/pkg/capture"
)

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{200, 200, 200, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestFileCamera(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	data := testJPEG(t)

	cam := NewFileCamera(dir, 90)
	if _, err := cam.Still(ctx); err == nil {
		t.Error("Expected error before Open")
	}
	if err := cam.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if _, err := cam.Still(ctx); err == nil {
		t.Error("Expected error for directory without images")
	}

	if err := os.WriteFile(filepath.Join(dir, "watch.jpg"), data, 0644); err != nil {
		t.Fatal(err)
	}

	raw, err := cam.Still(ctx)
	if err != nil {
		t.Fatalf("Still failed: %v", err)
	}
	if !bytes.Equal(raw.Data, data) {
		t.Error("Still returned different bytes")
	}
	if raw.RotationDegrees != 90 {
		t.Errorf("Expected rotation 90, got %d", raw.RotationDegrees)
	}
	if raw.MIMEType != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %s", raw.MIMEType)
	}
	if raw.CapturedAt.IsZero() {
		t.Error("Expected capture time from file modification time")
	}
}

func TestFileCameraMissingPath(t *testing.T) {
	cam := NewFileCamera(filepath.Join(t.TempDir(), "missing.jpg"), 0)
	if err := cam.Open(context.Background()); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestURLCamera(t *testing.T) {
	data := testJPEG(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/snapshot.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(data)
		case "/locked.jpg":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		}
	}))
	defer server.Close()

	ctx := context.Background()

	cam, err := NewURLCamera(server.URL+"/snapshot.jpg", 270)
	if err != nil {
		t.Fatalf("NewURLCamera failed: %v", err)
	}
	if err := cam.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	raw, err := cam.Still(ctx)
	if err != nil {
		t.Fatalf("Still failed: %v", err)
	}
	if !bytes.Equal(raw.Data, data) || raw.RotationDegrees != 270 {
		t.Error("Unexpected still from URL camera")
	}
	cam.Close()

	locked, _ := NewURLCamera(server.URL+"/locked.jpg", 0)
	if err := locked.Open(ctx); !errors.Is(err, capture.ErrPermissionDenied) {
		t.Errorf("Expected permission denied, got %v", err)
	}

	page, _ := NewURLCamera(server.URL+"/index.html", 0)
	if err := page.Open(ctx); err == nil {
		t.Error("Expected error for non-image content")
	}
}

func TestNewURLCameraInvalidScheme(t *testing.T) {
	if _, err := NewURLCamera("ftp://camera.local/snap.jpg", 0); err == nil {
		t.Error("Expected error for ftp scheme")
	}
}

func TestJPEGAssembler(t *testing.T) {
	frame := testJPEG(t)
	head, middle, tail := frame[:10], frame[10:len(frame)-10], frame[len(frame)-10:]

	var asm jpegAssembler

	if _, ok := asm.Write(tail); ok {
		t.Error("Orphan tail must not complete a frame")
	}

	for _, part := range [][]byte{head, middle} {
		if _, ok := asm.Write(part); ok {
			t.Fatal("Frame completed early")
		}
	}
	got, ok := asm.Write(tail)
	if !ok {
		t.Fatal("Expected complete frame")
	}
	if !bytes.Equal(got, frame) {
		t.Error("Reassembled frame differs from original")
	}

	// a new SOI discards the partial frame
	asm.Write(head)
	asm.Write(head)
	asm.Write(middle)
	got, ok = asm.Write(tail)
	if !ok || !bytes.Equal(got, frame) {
		t.Error("Expected restart on new frame header")
	}
}

func TestUDPCamera(t *testing.T) {
	ctx := context.Background()
	cam := NewUDPCamera("127.0.0.1:0", 0)
	if err := cam.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer cam.Close()

	if _, err := cam.Frame(ctx); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Expected ErrNoFrame, got %v", err)
	}

	conn, err := net.DialUDP("udp", nil, cam.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	frame := testJPEG(t)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				conn.Write(frame[:len(frame)/2])
				conn.Write(frame[len(frame)/2:])
			}
		}
	}()

	stillCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	raw, err := cam.Still(stillCtx)
	if err != nil {
		t.Fatalf("Still failed: %v", err)
	}
	if !bytes.Equal(raw.Data, frame) {
		t.Error("Still returned a different frame")
	}
}

func TestUDPCameraStillTimeout(t *testing.T) {
	cam := NewUDPCamera("127.0.0.1:0", 0)
	if err := cam.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer cam.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := cam.Still(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}
