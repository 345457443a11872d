package httpx

import (
	"encoding/json"
	"net/http"
)

// errorEnvelope is the uniform body shape every error response uses.
type errorEnvelope struct {
	Error string `json:"error"`
}

// JSON writes the provided payload as JSON with the supplied status code.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// Error writes an error response in the standard envelope.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, errorEnvelope{Error: message})
}
