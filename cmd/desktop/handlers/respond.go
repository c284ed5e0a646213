// Package handlers provides the REST handlers of the desktop API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/kimhsiao/lifetrack/backend/internal/errors"
	"github.com/kimhsiao/lifetrack/backend/internal/recurrence"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps an error code onto an HTTP status.
func statusOf(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrValidation, apperrors.ErrInvalid:
		return http.StatusBadRequest
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.ErrSyncInProgress:
		return http.StatusConflict
	case apperrors.ErrSyncOffline:
		return http.StatusServiceUnavailable
	case apperrors.ErrSyncTransport, apperrors.ErrSyncRejected, apperrors.ErrSyncTimeout, apperrors.ErrSyncConflict:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	body := errorBody{Code: string(code), Message: err.Error()}

	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		for _, f := range verr.Fields {
			body.Fields = append(body.Fields, f.String())
		}
	}
	writeJSON(w, statusOf(code), body)
}

func badRequest(w http.ResponseWriter, format string, args ...any) {
	writeError(w, apperrors.Newf(apperrors.ErrInvalid, format, args...))
}

// dayRange reads the from and to query parameters; missing bounds default
// to the given days.
func dayRange(r *http.Request, defFrom, defTo recurrence.Day) (recurrence.Day, recurrence.Day, error) {
	parse := func(name string, def recurrence.Day) (recurrence.Day, error) {
		s := r.URL.Query().Get(name)
		if s == "" {
			return def, nil
		}
		d, err := recurrence.ParseDay(s)
		if err != nil {
			return recurrence.Day{}, apperrors.Wrap(apperrors.ErrInvalid, "invalid "+name, err)
		}
		return d, nil
	}
	from, err := parse("from", defFrom)
	if err != nil {
		return from, from, err
	}
	to, err := parse("to", defTo)
	return from, to, err
}
