package capture

import (
	"errors"
	"image"
	"time"
)

var (
	// ErrPermissionDenied means the OS refused access to the camera device.
	ErrPermissionDenied = errors.New("camera access denied")
	// ErrDeviceUnavailable means the device is missing or busy.
	ErrDeviceUnavailable = errors.New("camera device unavailable")
	// ErrNotReady means acquisition has not produced a frame yet.
	ErrNotReady = errors.New("no frame available yet")
)

// Frame is one raster snapshot from the camera. It lives for the duration
// of a single sampling tick and is never persisted.
type Frame struct {
	Image      *image.RGBA
	Width      int
	Height     int
	CapturedAt time.Time
}

// Source provides on-demand access to the most recent camera frame.
// Acquire holds an exclusive claim on the device until Release is called;
// Release must be safe to call multiple times and on a never-acquired source.
type Source interface {
	// Acquire claims the camera and starts frame capture.
	// Fails with ErrPermissionDenied or ErrDeviceUnavailable.
	Acquire() error

	// CurrentFrame returns the most recently captured frame, or ErrNotReady
	// if the capture stream has not delivered one yet.
	CurrentFrame() (*Frame, error)

	// Release stops capture and frees the device. Idempotent.
	Release()
}
