package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/greenwave-data/junction.control/internal/monitoring"
)

// streamFrames serves the display sink as Server-Sent Events: one data
// event per controller tick. Slow clients lose frames rather than slow the
// tick loop; the subscription channel drops when full.
func (s *Server) streamFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, frames := s.ctrl.Subscribe()
	defer s.ctrl.Unsubscribe(id)

	// Send initial ping to establish connection
	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				// Channel closed, exit gracefully
				return
			}
			payload, err := json.Marshal(frame)
			if err != nil {
				monitoring.Logf("api: failed to encode display frame: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
