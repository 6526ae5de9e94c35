package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// Events streams ScheduleChanged for one artist as Server-Sent Events until the client leaves.
func (h *ScheduleHandler) Events(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	artistID := r.PathValue("artistId")

	sub := h.hub.Subscribe(artistID)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger.Warn("sse flush unsupported", "err", err)
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case evt, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				h.logger.Error("sse encode failed", "artist_id", artistID, "err", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", evt.EventID, "schedule.changed", data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
