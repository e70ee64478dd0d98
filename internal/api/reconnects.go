package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/tracker-grid/internal/audit"
	"github.com/nerrad567/tracker-grid/internal/grid"
)

// handleListReconnects returns the reconnect history, newest first.
//
// Query parameters:
//   - entity_id: only this device (with or without the device_tracker. prefix)
//   - outcome: "success" or "error"
//   - since: RFC 3339 timestamp
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListReconnects(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "reconnect history not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     audit.ActionReconnect,
		EntityType: audit.EntityTypeDeviceTracker,
		Outcome:    q.Get("outcome"),
	}

	if id := q.Get("entity_id"); id != "" {
		if len(id) > maxEntityIDLen {
			writeBadRequest(w, "invalid entity_id")
			return
		}
		if !strings.HasPrefix(id, grid.EntityPrefix) {
			id = grid.EntityPrefix + id
		}
		filter.EntityID = id
	}

	switch filter.Outcome {
	case "", grid.OutcomeSuccess, grid.OutcomeError:
	default:
		writeBadRequest(w, "outcome must be success or error")
		return
	}

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "invalid since timestamp")
			return
		}
		filter.Since = since
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list reconnects", "error", err)
		writeInternalError(w, "failed to list reconnects")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
