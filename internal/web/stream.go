package web

import (
	"fmt"
	"net/http"
)

// handleStream serves a Server-Sent Events stream of the active scan's
// combined stdout/stderr. New subscribers first receive a replay of
// recent lines, then live lines as the scanner produces them. When the
// scan completes the orchestrator closes the channel and the handler
// sends a "done" event.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.orch == nil {
		http.Error(w, "live streaming not available", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering if present

	id, ch, replay := s.orch.Subscribe()
	defer s.orch.Unsubscribe(id)

	for _, line := range replay {
		fmt.Fprintf(w, "data: %s\n\n", line)
	}
	if !s.orch.Active() {
		fmt.Fprintf(w, "event: done\ndata: no active scan\n\n")
		flusher.Flush()
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case line, open := <-ch:
			if !open {
				fmt.Fprintf(w, "event: done\ndata: scan finished\n\n")
				flusher.Flush()
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", line)
			flusher.Flush()
		}
	}
}
