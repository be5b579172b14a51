package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned by CaptureStill before a preview has been started
	ErrNotReady = errors.New("camera not ready: preview has not been started")
	// ErrPermissionDenied is returned when the camera source refuses access
	ErrPermissionDenied = errors.New("camera permission denied")
)

// BindingError reports a failed preview/session setup
type BindingError struct {
	Camera string
	Err    error
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("camera %s binding failed: %v", e.Camera, e.Err)
}

func (e *BindingError) Unwrap() error {
	return e.Err
}

// CaptureError reports a failed still capture; the user may retry
type CaptureError struct {
	Cause string
	Err   error
}

func (e *CaptureError) Error() string {
	if e.Err == nil {
		return "capture failed: " + e.Cause
	}
	return fmt.Sprintf("capture failed: %s: %v", e.Cause, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Kind classifies a capture-side fault for logs and metrics
func Kind(err error) string {
	var bindErr *BindingError
	var capErr *CaptureError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrNotReady):
		return "not_ready"
	case errors.As(err, &bindErr):
		return "camera_binding"
	case errors.As(err, &capErr):
		return "capture"
	default:
		return "unknown"
	}
}
