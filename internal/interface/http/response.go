package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the envelope of every API response.
type JSONResponse struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	codeNotFound        = "not_found"
	codeConflict        = "conflict"
	codeInvalidArgument = "invalid_argument"
	codeForbidden       = "forbidden"
	codeUnauthenticated = "unauthenticated"
	codeExternalService = "external_service_error"
	codeInternal        = "internal_server_error"
)

// writeJSON writes a successful envelope.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		RequestID: getRequestID(r.Context()),
	})
}

// writeDocument sends a stored document as a download.
func writeDocument(w http.ResponseWriter, name, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// writeJSONError writes an error envelope.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(JSONResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: message},
		RequestID: getRequestID(r.Context()),
	})
}

// writeError maps err to a status and writes the envelope. Internal errors
// are logged and hidden from the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Err(err),
		)
	}
	if status == http.StatusInternalServerError {
		writeJSONError(w, r, status, code, "An unexpected error occurred")
		return
	}
	writeJSONError(w, r, status, code, errorMessage(err))
}

// classify maps an error kind to an HTTP status. External service failures
// are checked first: gateway errors may wrap other kinds.
func classify(err error) (int, string) {
	switch {
	case shared.IsExternalService(err):
		return http.StatusBadGateway, codeExternalService
	case shared.IsNotFound(err):
		return http.StatusNotFound, codeNotFound
	case shared.IsConflict(err):
		return http.StatusConflict, codeConflict
	case shared.IsInvalidArgument(err):
		return http.StatusBadRequest, codeInvalidArgument
	case shared.IsUnauthorized(err):
		return http.StatusForbidden, codeForbidden
	case shared.IsUnauthenticated(err):
		return http.StatusUnauthorized, codeUnauthenticated
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// errorMessage returns the outermost domain message, or err.Error().
func errorMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func badRequest(op, message string) error {
	return shared.NewDomainError("http", op, shared.ErrInvalidArgument, message)
}

// decodeJSON reads the body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("Decode", "request body too large")
		}
		return shared.WrapError("http", "Decode", shared.ErrInvalidArgument, "malformed JSON body", err)
	}
	if dec.More() {
		return badRequest("Decode", "request body must contain a single JSON object")
	}
	return nil
}

// pathID parses a positive int64 path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("PathValue", fmt.Sprintf("%s must be a positive integer", name))
	}
	return id, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string, defaultValue int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("Query", fmt.Sprintf("%s must be an integer", key))
	}
	return v, nil
}
