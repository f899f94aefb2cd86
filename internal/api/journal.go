package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-mqtthelper/internal/journal"
)

// handleListJournal returns paginated journal entries with optional filters.
//
// Query parameters:
//   - operation: connect, subscribe or publish
//   - client_id, outcome: exact match
//   - since: RFC 3339 timestamp
//   - limit: max results (default 50, max 500)
//   - offset: pagination offset
func (s *Server) handleListJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeUnavailable(w, "journal not enabled")
		return
	}

	q := r.URL.Query()
	filter := journal.Filter{
		Operation: q.Get("operation"),
		ClientID:  q.Get("client_id"),
		Outcome:   q.Get("outcome"),
	}

	since, ok := s.parseSince(w, q.Get("since"))
	if !ok {
		return
	}
	filter.Since = since

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

	result, err := s.journal.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list journal entries", "error", err)
		s.writeInternalError(w, "failed to list journal entries")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleJournalSummary returns entry counts per operation and outcome.
func (s *Server) handleJournalSummary(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeUnavailable(w, "journal not enabled")
		return
	}

	since, ok := s.parseSince(w, r.URL.Query().Get("since"))
	if !ok {
		return
	}

	summary, err := s.journal.Summary(r.Context(), since)
	if err != nil {
		s.logger.Error("failed to summarise journal", "error", err)
		s.writeInternalError(w, "failed to summarise journal")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

// parseSince reads an optional RFC 3339 timestamp, answering 400 when malformed.
func (s *Server) parseSince(w http.ResponseWriter, v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		s.writeBadRequest(w, "since must be an RFC 3339 timestamp")
		return time.Time{}, false
	}
	return t, true
}
