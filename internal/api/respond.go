package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/rg/smsrelay/internal/segment"
	"github.com/rg/smsrelay/internal/sms"
	"github.com/rg/smsrelay/internal/smsconfig"
	"github.com/rg/smsrelay/internal/validate"
)

const maxBodyBytes = 1 << 20

// MessageResponse acknowledges a write.
type MessageResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	ID      string `json:"id,omitempty"`
	Parts   int    `json:"parts,omitempty"`
}

type errorResponse struct {
	Error     string            `json:"error"`
	Code      int               `json:"code"`
	Fields    map[string]string `json:"fields,omitempty"`
	ID        string            `json:"id,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
}

func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// statusFor maps a service error to the HTTP status it is reported with.
func statusFor(err error) int {
	var fields validate.Errors
	switch {
	case errors.As(err, &fields):
		return http.StatusBadRequest
	case segment.IsInfeasible(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, smsconfig.ErrNoConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, sms.ErrDelivery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func sendError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{
		Error:     err.Error(),
		Code:      status,
		RequestID: middleware.GetReqID(r.Context()),
	}

	var fields validate.Errors
	if errors.As(err, &fields) {
		resp.Error = "validation failed"
		resp.Fields = fields
	}

	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "path", r.URL.Path, "request_id", resp.RequestID, "error", err)
		resp.Error = "internal error"
	}

	sendJSON(w, status, resp)
}

func sendBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	sendJSON(w, http.StatusBadRequest, errorResponse{
		Error:     msg,
		Code:      http.StatusBadRequest,
		RequestID: middleware.GetReqID(r.Context()),
	})
}
