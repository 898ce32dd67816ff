package api

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// MessageResponse is the body of a successful command reply.
type MessageResponse struct {
	Message string `json:"message"`
	Paused  *bool  `json:"paused,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse reports the state of the backend's dependencies.
type HealthResponse struct {
	Broker   bool `json:"broker"`
	Database bool `json:"database"`
}

func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, ErrorResponse{Error: message}, statusCode)
}
