package api

import (
	"encoding/json"
	"net/http"
)

// Error is the body of every non-2xx admin response. ClientID and State
// describe the MQTT session at the time of the error so a failed scrape or
// journal query can be read without a second status request.
type Error struct {
	Status   int    `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	ClientID string `json:"client_id,omitempty"`
	State    string `json:"state"`
}

// Error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeInternal    = "internal_error"
	ErrCodeUnavailable = "unavailable"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:   status,
		Code:     code,
		Message:  message,
		ClientID: s.clientID,
		State:    string(s.helper.State()),
	})
}

func (s *Server) writeBadRequest(w http.ResponseWriter, message string) {
	s.writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func (s *Server) writeInternalError(w http.ResponseWriter, message string) {
	s.writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

func (s *Server) writeUnavailable(w http.ResponseWriter, message string) {
	s.writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}
