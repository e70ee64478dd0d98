package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/tracker-grid/internal/grid"
)

// maxFilterLen bounds the filter text accepted from clients.
const maxFilterLen = 256

// maxEntityIDLen bounds the entity id path parameter.
const maxEntityIDLen = 255

// filterRequest is the request body for PUT /grid/filter.
type filterRequest struct {
	Text string `json:"text"`
}

// sortRequest is the request body for PUT /grid/sort.
type sortRequest struct {
	Key   grid.SortKey   `json:"key"`
	Order grid.SortOrder `json:"order"`
}

// reconnectResponse is the response body for POST /devices/{id}/reconnect.
type reconnectResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Action grid.ActionView `json:"action"`
}

// handleGetGrid returns the current view-model.
func (s *Server) handleGetGrid(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.View())
}

// handleSetFilter sets the shared free-text filter.
func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Text) > maxFilterLen {
		writeValidationError(w, "filter text is too long")
		return
	}

	s.engine.SetFilter(req.Text)
	writeJSON(w, http.StatusOK, s.engine.View())
}

// handleClearFilter removes the shared filter.
func (s *Server) handleClearFilter(w http.ResponseWriter, _ *http.Request) {
	s.engine.ClearFilter()
	writeJSON(w, http.StatusOK, s.engine.View())
}

// handleToggleSort applies a header click on a column.
func (s *Server) handleToggleSort(w http.ResponseWriter, r *http.Request) {
	col := grid.Column(strings.ToLower(chi.URLParam(r, "column")))

	if err := s.engine.ToggleSort(col); err != nil {
		s.writeSortError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.View())
}

// handleSetSort sets the sort key and direction explicitly.
func (s *Server) handleSetSort(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Order == "" {
		req.Order = grid.Ascending
	}

	if err := s.engine.SetSort(req.Key, req.Order); err != nil {
		s.writeSortError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.View())
}

// writeSortError maps sort errors to responses.
func (s *Server) writeSortError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, grid.ErrUnknownColumn),
		errors.Is(err, grid.ErrUnknownSortKey),
		errors.Is(err, grid.ErrUnknownSortOrder):
		writeValidationError(w, err.Error())
	case errors.Is(err, grid.ErrSortingDisabled),
		errors.Is(err, grid.ErrColumnNotSortable):
		writeConflict(w, err.Error())
	default:
		s.logger.Error("sort change failed", "error", err)
		writeInternalError(w, "failed to change sort")
	}
}

// handleReconnect triggers the reconnect action for one row.
//
// The call itself is asynchronous: 202 means the row went pending and the
// outcome arrives through the grid renders and the reconnect history.
// 409 means the guard rejected the click (row busy or Home Assistant
// unavailable).
func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxEntityIDLen {
		writeBadRequest(w, "invalid device ID")
		return
	}
	if !strings.HasPrefix(id, grid.EntityPrefix) {
		id = grid.EntityPrefix + id
	}

	started, err := s.engine.Reconnect(id)
	if err != nil {
		if errors.Is(err, grid.ErrRowNotFound) {
			writeNotFound(w, "device is not in the grid")
			return
		}
		s.logger.Error("reconnect failed", "entity_id", id, "error", err)
		writeInternalError(w, "failed to start reconnect")
		return
	}

	action := s.engine.Actions().State(id)
	if !started {
		writeConflict(w, "reconnect not available for this device right now")
		return
	}

	subject := ""
	if claims := claimsFromContext(r.Context()); claims != nil {
		subject = claims.Subject
	}
	s.logger.Info("reconnect requested",
		"entity_id", id,
		"subject", subject,
		"request_id", r.Context().Value(ctxKeyRequestID),
	)

	writeJSON(w, http.StatusAccepted, reconnectResponse{
		ID:     id,
		Status: "started",
		Action: action,
	})
}
