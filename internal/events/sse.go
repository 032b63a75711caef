package events

import (
	"fmt"
	"log"
	"net/http"
)

// SSEHandler streams bus events to HTTP clients as server-sent events.
type SSEHandler struct {
	bus    *Bus
	logger *log.Logger
}

// NewSSEHandler creates an SSE handler on the given bus.
func NewSSEHandler(bus *Bus, logger *log.Logger) *SSEHandler {
	return &SSEHandler{bus: bus, logger: logger}
}

// ServeHTTP subscribes the client to the bus and streams events until the
// client disconnects. The first frame is a {"type":"connected"} sentinel
// so clients can distinguish an open stream from a stalled request.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := h.bus.Subscribe()
	defer cancel()

	if err := writeFrame(w, Event{Type: "connected"}); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if err := writeFrame(w, event); err != nil {
				h.logger.Printf("[sse] write to %s failed: %v", r.RemoteAddr, err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, event Event) error {
	data, err := MarshalEvent(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
