package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"postdeck/internal/calendar"
	"postdeck/internal/lifecycle"
	logx "postdeck/pkg/logx"
)

const (
	kindValidation   = "validation"
	kindContentIssue = "content_issue"
	kindTransient    = "transient"
	kindNotFound     = "not_found"
	kindInternal     = "internal"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type retryIssueBody struct {
	errorBody
	Result lifecycle.RetryResult `json:"result"`
}

type kinder interface{ Kind() string }

// ErrorKind maps an operation error to its API kind.
func ErrorKind(err error) string {
	if errors.Is(err, lifecycle.ErrNotFound) || errors.Is(err, calendar.ErrNotFound) {
		return kindNotFound
	}
	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return kindInternal
}

func statusFor(kind string) int {
	switch kind {
	case kindValidation:
		return http.StatusBadRequest
	case kindContentIssue:
		return http.StatusUnprocessableEntity
	case kindTransient:
		return http.StatusServiceUnavailable
	case kindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := ErrorKind(err)
	status := statusFor(kind)
	if status >= 500 {
		s.log.Warn("request failed", logx.String("method", r.Method), logx.String("path", r.URL.Path), logx.String("kind", kind), logx.Err(err))
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
