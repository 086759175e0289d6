package api

import (
	"net/http"
)

// StatsProvider reports a point-in-time view of the recommender: lifecycle
// state, queue depth, worker count, cache occupancy and breaker state.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	source StatsProvider
}

func NewStatsHandler(source StatsProvider) *StatsHandler {
	return &StatsHandler{source: source}
}

// HandleStats writes the current snapshot. The numbers change between
// requests, so responses are marked uncacheable.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}
	snapshot := h.source.GetStats()
	if snapshot == nil {
		snapshot = map[string]interface{}{}
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, snapshot)
}
