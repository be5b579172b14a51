package main

import (
	"fmt"

	"github.com/menta2k/watch-reader/internal/config"
	"github.com/menta2k/watch-reader/pkg/camera"
	"github.com/menta2k/watch-reader/pkg/camera/webcam"
	"github.com/menta2k/watch-reader/pkg/capture"
)

func newCamera(cfg config.CameraConfig) (capture.Camera, error) {
	switch cfg.Source {
	case "file":
		return camera.NewFileCamera(cfg.Path, cfg.Rotation), nil
	case "url":
		return camera.NewURLCamera(cfg.URL, cfg.Rotation)
	case "udp":
		return camera.NewUDPCamera(cfg.UDPAddr, cfg.Rotation), nil
	case "webcam":
		return webcam.New(cfg.DeviceID, cfg.Rotation), nil
	default:
		return nil, fmt.Errorf("unknown camera source: %s (use 'file', 'url', 'udp' or 'webcam')", cfg.Source)
	}
}
