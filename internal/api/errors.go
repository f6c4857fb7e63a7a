package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/wbmqtt-import/internal/device"
	"github.com/nerrad567/wbmqtt-import/internal/wbimport"
)

// Error is the body of every non-2xx response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes, one per status the API returns.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeUnavailable = "unavailable"
	ErrCodeInternal    = "internal_error"
)

var codeForStatus = map[int]string{
	http.StatusBadRequest:          ErrCodeBadRequest,
	http.StatusNotFound:            ErrCodeNotFound,
	http.StatusConflict:            ErrCodeConflict,
	http.StatusServiceUnavailable:  ErrCodeUnavailable,
	http.StatusInternalServerError: ErrCodeInternal,
}

// domainStatus lists, in match order, the HTTP status for each domain
// error. Anything unlisted is a 500.
var domainStatus = []struct {
	err    error
	status int
}{
	{wbimport.ErrUnknownDevice, http.StatusNotFound},
	{device.ErrDeviceNotFound, http.StatusNotFound},
	{device.ErrInvalidCommand, http.StatusBadRequest},
	{device.ErrCommandNotSupported, http.StatusConflict},
	{device.ErrNoHandler, http.StatusConflict},
	{wbimport.ErrUnsupportedType, http.StatusConflict},
	{wbimport.ErrCreateFailed, http.StatusConflict},
	{wbimport.ErrStopped, http.StatusServiceUnavailable},
	{wbimport.ErrNotStarted, http.StatusServiceUnavailable},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	//nolint:errcheck // Best-effort write to response; connection may be closed
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	code, ok := codeForStatus[status]
	if !ok {
		code = ErrCodeInternal
	}
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, message)
}

// writeDomainError maps import and registry errors to a response. The
// message of an unmapped error is not exposed.
func writeDomainError(w http.ResponseWriter, err error) {
	for _, m := range domainStatus {
		if errors.Is(err, m.err) {
			writeError(w, m.status, err.Error())
			return
		}
	}
	writeInternalError(w, "internal server error")
}
