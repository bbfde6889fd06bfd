package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"vigil/internal/capture"
)

const previewInterval = 200 * time.Millisecond

// handlePreview serves a live MJPEG view of the camera while a session is
// active. Each part is one JPEG frame; browsers render the multipart stream
// natively in an <img> tag.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	first, err := s.controller.Snapshot()
	if err != nil {
		if errors.Is(err, capture.ErrNotReady) {
			writeError(w, http.StatusConflict, "no active session")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")

	writeFrame := func(jpeg []byte) error {
		if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
			return err
		}
		if _, err := w.Write(jpeg); err != nil {
			return err
		}
		if _, err := fmt.Fprint(w, "\r\n"); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := writeFrame(first); err != nil {
		return
	}

	ticker := time.NewTicker(previewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			jpeg, err := s.controller.Snapshot()
			if err != nil {
				// Session ended mid-stream; close the response.
				return
			}
			if err := writeFrame(jpeg); err != nil {
				return
			}
		}
	}
}
