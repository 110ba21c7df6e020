package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"beacon-hq/beacon/pkg/cache"
)

// cachedMetricResponse is the durable-cache envelope: the payload as it
// was fetched, plus when and from where.
type cachedMetricResponse struct {
	Data      json.RawMessage `json:"data"`
	FetchedAt time.Time       `json:"fetched_at"`
	Source    string          `json:"source,omitempty"`
}

// errorResponse is the JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCachedMetric serves the newest cached snapshot for a key.
func (s *Server) handleCachedMetric(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	entry, err := s.store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{
				Error: "no cached snapshot for metric " + key,
			})
			return
		}
		s.logger.Error("cache read failed", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: "cache read failed",
		})
		return
	}

	fetchedAt := entry.StoredAt
	if entry.Payload.HasTimestamp() {
		fetchedAt = entry.Payload.Timestamp
	}

	writeJSON(w, http.StatusOK, cachedMetricResponse{
		Data:      entry.Payload.Raw,
		FetchedAt: fetchedAt,
		Source:    entry.Payload.Source,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
