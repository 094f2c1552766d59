package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/eugenenazirov/bluegreen/internal/config"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// Handler serves the version payload of a single service instance.
type Handler struct {
	body []byte
}

// NewHandler encodes the service identity once so every response carries
// byte-identical bodies for the lifetime of the process.
func NewHandler(svc config.ServiceConfig) (*Handler, error) {
	body, err := json.Marshal(versionResponse{
		Pool:    svc.Pool,
		Release: svc.Release,
		Port:    svc.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("encode version payload: %w", err)
	}
	return &Handler{body: body}, nil
}

// handleVersion answers GET only. Other methods get the same not-found
// response as unknown paths.
func (h *Handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.body)
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type versionResponse struct {
	Pool    string `json:"pool"`
	Release string `json:"release"`
	Port    string `json:"port"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{
		Error:   message,
		Details: details,
	})
}
