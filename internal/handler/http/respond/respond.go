// Package respond writes JSON responses for the worker's operational endpoints.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"feed-digest/internal/utils/redact"
)

// JSON writes a JSON response with the given status code and data.
// A nil v writes headers only.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			// Log the error but cannot send error response as headers already sent
			slog.Default().Error("failed to encode JSON response",
				slog.Int("status_code", code),
				slog.Any("error", err))
		}
	}
}

// Error writes {"error": "..."} with credentials and URLs redacted from the message.
func Error(w http.ResponseWriter, code int, err error) {
	msg := http.StatusText(code)
	if err != nil {
		msg = redact.Error(err)
	}
	JSON(w, code, map[string]string{"error": msg})
}
