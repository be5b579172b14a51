// Package webcam captures from a local video device through OpenCV.
// It needs cgo and an OpenCV installation, so it is kept out of the camera package.
package webcam

import (
	"context"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/menta2k/watch-reader/pkg/types"
)

// Camera reads frames from a video device such as /dev/video0 (device 0)
type Camera struct {
	deviceID int
	rotation int
	capture  *gocv.VideoCapture
	mat      gocv.Mat
}

// New creates a webcam for the given device index
func New(deviceID, rotation int) *Camera {
	return &Camera{deviceID: deviceID, rotation: rotation}
}

func (c *Camera) Name() string {
	return fmt.Sprintf("webcam:%d", c.deviceID)
}

func (c *Camera) Open(ctx context.Context) error {
	vc, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return fmt.Errorf("failed to open video device %d: %w", c.deviceID, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("video device %d could not be opened", c.deviceID)
	}

	c.capture = vc
	c.mat = gocv.NewMat()
	return nil
}

func (c *Camera) Frame(ctx context.Context) ([]byte, error) {
	if c.capture == nil {
		return nil, fmt.Errorf("webcam is closed")
	}

	if ok := c.capture.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, fmt.Errorf("failed to read frame from device %d", c.deviceID)
	}

	buf, err := gocv.IMEncode(".jpg", c.mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}

func (c *Camera) Still(ctx context.Context) (types.RawCapture, error) {
	data, err := c.Frame(ctx)
	if err != nil {
		return types.RawCapture{}, err
	}
	return types.RawCapture{
		Data:            data,
		MIMEType:        "image/jpeg",
		RotationDegrees: c.rotation,
		CapturedAt:      time.Now(),
	}, nil
}

func (c *Camera) Close() error {
	if c.capture == nil {
		return nil
	}
	c.mat.Close()
	err := c.capture.Close()
	c.capture = nil
	return err
}
