// Package common holds the response envelope shared by all API handlers.
// Every response is either {"success":true, ...payload} or
// {"success":false, "message": "..."}.
package common

import (
	"encoding/json"
	"net/http"
)

// WriteSuccessResponse writes a success envelope with the given payload
// fields merged in
func WriteSuccessResponse(w http.ResponseWriter, statusCode int, fields map[string]any) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// WriteErrorResponse writes a failure envelope
func WriteErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	body := map[string]any{
		"success": false,
		"message": message,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
