package camera

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/menta2k/watch-reader/internal/utils"
	"github.com/menta2k/watch-reader/pkg/capture"
	"github.com/menta2k/watch-reader/pkg/types"
)

// FileCamera reads stills from an image file, or from the newest image in a
// directory that a phone or another process drops pictures into.
type FileCamera struct {
	path     string
	rotation int
	opened   bool
}

// NewFileCamera creates a file-backed camera reporting the given mount rotation
func NewFileCamera(path string, rotation int) *FileCamera {
	return &FileCamera{path: path, rotation: rotation}
}

func (c *FileCamera) Name() string {
	return "file:" + c.path
}

func (c *FileCamera) Open(ctx context.Context) error {
	if _, err := os.Stat(c.path); err != nil {
		return classifyFileError(err)
	}
	c.opened = true
	return nil
}

func (c *FileCamera) Frame(ctx context.Context) ([]byte, error) {
	raw, err := c.Still(ctx)
	if err != nil {
		return nil, err
	}
	return raw.Data, nil
}

func (c *FileCamera) Still(ctx context.Context) (types.RawCapture, error) {
	if !c.opened {
		return types.RawCapture{}, fmt.Errorf("file camera is closed")
	}

	path, modTime, err := c.resolve()
	if err != nil {
		return types.RawCapture{}, classifyFileError(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return types.RawCapture{}, classifyFileError(err)
	}

	return types.RawCapture{
		Data:            data,
		MIMEType:        utils.MIMETypeFor(path),
		RotationDegrees: c.rotation,
		CapturedAt:      modTime,
	}, nil
}

func (c *FileCamera) Close() error {
	c.opened = false
	return nil
}

func (c *FileCamera) resolve() (string, time.Time, error) {
	info, err := os.Stat(c.path)
	if err != nil {
		return "", time.Time{}, err
	}
	if info.IsDir() {
		return utils.LatestImageFile(c.path)
	}
	return c.path, info.ModTime(), nil
}

func classifyFileError(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %v", capture.ErrPermissionDenied, err)
	}
	return err
}
