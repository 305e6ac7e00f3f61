package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dd0wney/cluso-topology/pkg/logging"
	"github.com/dd0wney/cluso-topology/pkg/topology"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("Error encoding JSON response", logging.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}

// respondErr maps domain errors onto status codes
func (s *Server) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, topology.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, topology.ErrValidation), errors.Is(err, topology.ErrInvalidEndpoint):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("Request failed", logging.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// requestDecoder decodes request bodies with a fluent error check
type requestDecoder struct {
	r          *http.Request
	w          http.ResponseWriter
	server     *Server
	err        error
	statusCode int
}

func (s *Server) newRequestDecoder(w http.ResponseWriter, r *http.Request) *requestDecoder {
	return &requestDecoder{r: r, w: w, server: s}
}

// DecodeJSON decodes the request body into v
func (rd *requestDecoder) DecodeJSON(v any) *requestDecoder {
	if rd.err != nil {
		return rd
	}
	if err := json.NewDecoder(rd.r.Body).Decode(v); err != nil {
		rd.err = fmt.Errorf("invalid request body: %w", err)
		rd.statusCode = http.StatusBadRequest
	}
	return rd
}

// RespondError sends the error response and reports whether there was one
func (rd *requestDecoder) RespondError() bool {
	if rd.err == nil {
		return false
	}
	rd.server.respondError(rd.w, rd.statusCode, rd.err.Error())
	return true
}

// pathID parses a numeric path wildcard, answering 400 on failure
func (s *Server) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, "Invalid ID format")
		return 0, false
	}
	return id, true
}

// checkCalculation answers 404 for any calculation other than the served one
func (s *Server) checkCalculation(w http.ResponseWriter, r *http.Request) bool {
	id, ok := s.pathID(w, r, "calc")
	if !ok {
		return false
	}
	if id != s.data.Calculation() {
		s.respondError(w, http.StatusNotFound, topology.NotFound("calculation", id).Error())
		return false
	}
	return true
}
