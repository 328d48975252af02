package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ibeloyar/payrelay/internal/model"
	"github.com/ibeloyar/payrelay/pgk/auth"
)

const heartbeatInterval = 25 * time.Second

// Events streams payment confirmations for the token's uid as Server-Sent
// Events until the client disconnects. It expects the stream token to be
// verified by auth.AuthBearerMiddlewareInit.
func (c *Controller) Events(w http.ResponseWriter, r *http.Request) {
	info := auth.GetTokenInfo[model.StreamTokenInfo](r)
	if info == nil || info.UID == "" {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, model.ErrStreamUnsupportedMessage, http.StatusInternalServerError)
		return
	}

	events, cancel := c.events.Subscribe(info.UID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}

			data, err := json.Marshal(event)
			if err != nil {
				c.lg.Errorf("failed to encode event %s: %v", event.EventID, err)
				continue
			}

			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.EventID, event.Type, data)
			flusher.Flush()
		}
	}
}
