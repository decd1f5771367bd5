package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/roach88/marksync/internal/engine"
)

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the envelope of every API response.
type Response struct {
	Status string     `json:"status"`
	Data   any        `json:"data,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// ErrorBody carries an error code and message.
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// codeInternal is reported for errors that carry no engine code.
const codeInternal = "INTERNAL"

// statusFor maps an engine error code to an HTTP status.
func statusFor(code engine.ErrorCode) int {
	switch code {
	case engine.CodeInvalidInput:
		return http.StatusBadRequest
	case engine.CodeNotFound:
		return http.StatusNotFound
	case engine.CodeAlreadyProcessed:
		return http.StatusConflict
	case engine.CodeInvalidReference, engine.CodeSourceRead:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, Response{Status: StatusSuccess, Data: data})
}

func writeError(w http.ResponseWriter, code int, errCode, message string, details map[string]string) {
	writeJSON(w, code, Response{
		Status: StatusError,
		Error:  &ErrorBody{Code: errCode, Message: message, Details: details},
	})
}

// writeEngineError writes err with the status of its engine code.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var e *engine.Error
	if !errors.As(err, &e) {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, err.Error(), nil)
		return
	}

	status := statusFor(e.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "code", e.Code, "error", err)
	}
	writeError(w, status, string(e.Code), e.Error(), e.Details)
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, string(engine.CodeInvalidInput), message, nil)
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// unchanged.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, key string) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
