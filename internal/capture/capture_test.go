package capture

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWebcam_CurrentFrameBeforeAcquire(t *testing.T) {
	w := NewWebcam("/dev/video0", 640, 480, 10)
	if _, err := w.CurrentFrame(); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
}

func TestWebcam_ReleaseWithoutAcquire(t *testing.T) {
	w := NewWebcam("/dev/video0", 640, 480, 10)
	// Must not panic or block.
	w.Release()
	w.Release()
}

func TestWebcam_AcquireMissingDevice(t *testing.T) {
	w := NewWebcam(filepath.Join(t.TempDir(), "no-such-device"), 640, 480, 10)
	if err := w.Acquire(); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestWebcam_AcquireInvalidSize(t *testing.T) {
	w := NewWebcam("/dev/video0", 0, 480, 10)
	if err := w.Acquire(); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestProbeDevice_PermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root, permission checks do not apply")
	}

	path := filepath.Join(t.TempDir(), "locked")
	if err := os.WriteFile(path, nil, 0); err != nil {
		t.Fatalf("create file: %v", err)
	}
	if err := probeDevice(path); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestIsNetworkSource(t *testing.T) {
	tests := []struct {
		device string
		want   bool
	}{
		{"/dev/video0", false},
		{"http://cam.local/stream", true},
		{"https://cam.local/stream", true},
		{"rtsp://cam.local:554/stream", true},
	}
	for _, tt := range tests {
		if got := isNetworkSource(tt.device); got != tt.want {
			t.Errorf("isNetworkSource(%q) = %v, want %v", tt.device, got, tt.want)
		}
	}
}
