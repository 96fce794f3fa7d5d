package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"chatd/internal/manager"
	"chatd/pkg/types"
)

// Error messages of POST /api/chat.
const (
	msgRequired    = "Message is required"
	msgInvalidJSON = "invalid JSON body"
	msgNotReady    = "Model not loaded yet"
	msgBusy        = "Model is busy, retry later"
	msgFailed      = "Failed to generate response"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg})
}

func writeNotReady(w http.ResponseWriter, p types.LoadingProgress) {
	writeJSON(w, http.StatusServiceUnavailable, types.ErrorResponse{Error: msgNotReady, LoadingProgress: &p})
}

// writeChatError maps manager errors to HTTP responses and returns the status written.
func (s *server) writeChatError(w http.ResponseWriter, err error) int {
	switch {
	case manager.IsNotReady(err):
		p, _ := manager.NotReadyProgress(err)
		writeNotReady(w, p)
		return http.StatusServiceUnavailable
	case manager.IsTooBusy(err):
		IncrementBackpressure("queue")
		w.Header().Set("Retry-After", strconv.Itoa(int(s.opts.RetryAfter.Seconds()+0.5)))
		writeJSONError(w, http.StatusTooManyRequests, msgBusy)
		return http.StatusTooManyRequests
	default:
		writeJSONError(w, http.StatusInternalServerError, msgFailed)
		return http.StatusInternalServerError
	}
}
