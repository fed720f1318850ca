package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/duvholt/bifrost/internal/graph"
)

// sseKeepalive is how often a blank comment line is written to the
// stream so intermediaries and clients can detect a dead connection
// without waiting for the next real event, per spec §5.
const sseKeepalive = 30 * time.Second

type sseEvent struct {
	CreationTime string        `json:"creationtime"`
	Data         []map[string]any `json:"data"`
	ID           string        `json:"id"`
	Type         string        `json:"type"`
}

// handleSSE streams the graph's coalesced change log as server-sent
// events. Each flushed batch becomes one "update" event carrying every
// changed resource's current body; deletions carry only id/type. A
// reconnecting client sends back the last event id it saw via
// Last-Event-ID, which the browser EventSource API does automatically;
// if that seq has already aged out of the retained tail the subscriber
// is told to drop its cursor and start over.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeInternalError(w)
		return
	}

	var fromSeq int64
	if last := r.Header.Get("Last-Event-ID"); last != "" {
		if parsed, err := strconv.ParseInt(last, 10, 64); err == nil {
			fromSeq = parsed
		}
	}

	sub, err := s.store.SubscribeFrom(fromSeq)
	if err != nil {
		writeGone(w, "subscriber fell too far behind the change log; reconnect without Last-Event-ID")
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(sseKeepalive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case ev, ok := <-sub.Events:
			if !ok {
				if err := sub.Err(); err != nil {
					log.Warn().Err(err).Msg("sse subscriber dropped")
				}
				return
			}
			writeSSEEvent(w, s.store, ev)
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, store *graph.Store, ev graph.Event) {
	data := make([]map[string]any, 0, len(ev.Mutations))
	for _, m := range ev.Mutations {
		if m.Kind == graph.ChangeDeleted {
			data = append(data, map[string]any{
				"id":   m.Handle.ID.String(),
				"type": string(m.Handle.Kind),
			})
			continue
		}
		if res, ok := store.Get(m.Handle); ok {
			data = append(data, resourceBody(res))
		}
	}
	if len(data) == 0 {
		return
	}

	out := sseEvent{
		CreationTime: time.Now().UTC().Format(time.RFC3339),
		Data:         data,
		ID:           strconv.FormatInt(ev.Seq, 10),
		Type:         "update",
	}
	body, err := json.Marshal([]sseEvent{out})
	if err != nil {
		return
	}
	fmt.Fprintf(w, "id: %s\ndata: %s\n\n", out.ID, body)
}
