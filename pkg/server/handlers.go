package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kadirpekel/notely/pkg/chat"
	"github.com/kadirpekel/notely/pkg/ratelimit"
)

// errorResponse is the JSON body of every non-429 error.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type pingResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
	Details  string `json:"details,omitempty"`
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: s.version})
}

// handleChat answers a question about the caller's notes.
func (s *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}

	resp, err := s.chat.Reply(r.Context(), req)
	if err != nil {
		var modelErr *chat.ModelError
		switch {
		case errors.Is(err, chat.ErrMessageRequired):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Message is required"})
		case errors.As(err, &modelErr):
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "AI model error", Details: modelErr.Details()})
		default:
			slog.Error("Error processing chat request", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to process request", Details: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleTestGemini sends a fixed prompt to check the model connection.
func (s *HTTPServer) handleTestGemini(w http.ResponseWriter, r *http.Request) {
	text, err := s.chat.Ping(r.Context())
	if err != nil {
		details := err.Error()
		var modelErr *chat.ModelError
		if errors.As(err, &modelErr) {
			details = modelErr.Details()
		}
		writeJSON(w, http.StatusInternalServerError, pingResponse{
			Success: false,
			Error:   "AI model error",
			Details: details,
		})
		return
	}

	writeJSON(w, http.StatusOK, pingResponse{
		Success:  true,
		Response: text,
		Message:  "Gemini API test successful",
	})
}

// handleRateLimit reports the caller's quota without consuming it.
func (s *HTTPServer) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	result, err := s.limiter.Peek(s.identifierFunc()(r))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ratelimit.SetHeaders(w.Header(), result)

	quota := *result
	quota.ResetAt = quota.ResetAt.UTC()
	writeJSON(w, http.StatusOK, quota)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}
