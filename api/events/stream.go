// Package events streams lifecycle events to HTTP clients as Server-Sent
// Events.
package events

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/rescue/core/model"
	"github.com/kilianp07/rescue/internal/eventbus"
)

// Subscriber hands out event subscriptions by topic pattern.
type Subscriber interface {
	Subscribe(pattern string) <-chan eventbus.Message[model.Event]
	Unsubscribe(ch <-chan eventbus.Message[model.Event])
}

// Heartbeat is the idle interval between keep-alive comments.
var Heartbeat = 15 * time.Second

// NewHandler serves GET /api/events?topic=<pattern>. The pattern uses MQTT
// wildcards and defaults to '#'. Each event is sent with its kind as the SSE
// event name and {"topic", "event"} as data.
func NewHandler(sub Subscriber) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		pattern := r.URL.Query().Get("topic")
		if pattern == "" {
			pattern = "#"
		}
		ch := sub.Subscribe(pattern)
		defer sub.Unsubscribe(ch)

		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, ": subscribed %s\n\n", pattern)
		flusher.Flush()

		ticker := time.NewTicker(Heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			case msg, ok := <-ch:
				if !ok {
					return
				}
				data, err := json.Marshal(struct {
					Topic string      `json:"topic"`
					Event model.Event `json:"event"`
				}{msg.Topic, msg.Payload})
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Payload.Kind, data)
				flusher.Flush()
			}
		}
	})
}
