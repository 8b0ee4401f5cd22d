package query

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"battlescope/internal/killmail"
	"battlescope/internal/stream"
	"battlescope/pkg/sde"
)

// StreamHandler serves spec.md §6's SSE route. It is mounted directly on the
// chi router rather than through huma, since huma's typed-response model has
// no first-class support for a long-lived event stream; this is the one
// route in the API built on plain net/http.
type StreamHandler struct {
	Killmails  *killmail.Store
	Subscriber *stream.Subscriber
	Classifier *sde.Classifier
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	once := r.URL.Query().Get("once") == "true"
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	spaceType := sde.SecurityType(r.URL.Query().Get("spaceType"))

	applyCORS(w, r)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	page, err := h.Killmails.ListRecent(r.Context(), killmail.RecentFilter{Limit: limit})
	if err != nil {
		return
	}
	snapshot := filterBySpaceType(page.Events, spaceType, h.Classifier)
	writeEvent(w, "snapshot", snapshotPayload(snapshot))
	flusher.Flush()

	if once {
		return
	}

	events, cancel := h.Subscriber.Register()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if spaceType != "" && h.Classifier.ClassifySystem(event.SystemID) != spaceType {
				continue
			}
			writeEvent(w, "killmail", toKillmailResponse(event))
			flusher.Flush()
		}
	}
}

func filterBySpaceType(events []killmail.Event, spaceType sde.SecurityType, classifier *sde.Classifier) []killmail.Event {
	if spaceType == "" {
		return events
	}
	out := make([]killmail.Event, 0, len(events))
	for _, e := range events {
		if classifier.ClassifySystem(e.SystemID) == spaceType {
			out = append(out, e)
		}
	}
	return out
}

func snapshotPayload(events []killmail.Event) []KillmailResponse {
	out := make([]KillmailResponse, len(events))
	for i, e := range events {
		out[i] = toKillmailResponse(e)
	}
	return out
}

func writeEvent(w http.ResponseWriter, event string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, body)
}

// applyCORS mirrors the teacher's corsMiddleware, extended per spec.md §6
// with the credentials and Vary headers an SSE response must carry.
func applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Vary", "Origin")
	}
}
