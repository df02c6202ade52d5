package api

import (
	"net/http"

	"github.com/rg/smsrelay/internal/smsconfig"
)

type configurationResponse struct {
	MaxSmsLength   int    `json:"maxSmsLength"`
	SuffixTemplate string `json:"suffixTemplate"`
}

// handleCreateConfiguration handles POST /api/sms/configuration.
func (h *Handler) handleCreateConfiguration(w http.ResponseWriter, r *http.Request) {
	var in smsconfig.Input
	if err := decodeJSON(w, r, &in); err != nil {
		sendBadRequest(w, r, err.Error())
		return
	}

	if _, err := h.configs.Create(r.Context(), in); err != nil {
		sendError(w, r, err)
		return
	}

	sendJSON(w, http.StatusOK, MessageResponse{
		Message: "New configuration added.",
		Code:    http.StatusOK,
	})
}

// handleGetConfiguration handles GET /api/sms/configuration.
func (h *Handler) handleGetConfiguration(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.configs.Current(r.Context())
	if err != nil {
		sendError(w, r, err)
		return
	}

	sendJSON(w, http.StatusOK, configurationResponse{
		MaxSmsLength:   cfg.MaxSmsLength,
		SuffixTemplate: cfg.SuffixTemplate,
	})
}
