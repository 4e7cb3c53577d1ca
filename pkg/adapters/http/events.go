package http

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// eventBuffer is the number of progress records an SSE client may lag behind.
const eventBuffer = 32

// SubscribeEvents handles the GET /events request (SSE).
// Every published progress record is sent as a "progress" event.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Scheduler.Subscribe(eventBuffer)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.Logger.Info("SSE client connected", "remote", r.RemoteAddr)

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Info("SSE client disconnected", "remote", r.RemoteAddr)
			return
		case p, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(p)
			if err != nil {
				s.Logger.Error("SSE: progress encode failed", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
