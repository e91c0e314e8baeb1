package httpapi

import (
	"bizlink/errors"
	"encoding/json"
	"log/slog"
	"net/http"
)

// WriteJSON writes a success body: {"success": true} merged with payload.
func WriteJSON(w http.ResponseWriter, status int, payload map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	write(w, status, body)
}

// WriteError maps err to its status and writes the public part of it.
// Causes of internal errors are logged, never written.
func WriteError(log *slog.Logger, w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "error", err)
	}
	write(w, status, map[string]any{
		"success": false,
		"message": errors.Message(err),
		"code":    errors.Code(err),
	})
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
