package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rg/smsrelay/internal/sms"
)

type previewRequest struct {
	Message string `json:"message"`
}

type listResponse struct {
	Sms []*sms.Record `json:"sms"`
}

// handleSendSms handles POST /api/sms.
func (h *Handler) handleSendSms(w http.ResponseWriter, r *http.Request) {
	var req sms.Request
	if err := decodeJSON(w, r, &req); err != nil {
		sendBadRequest(w, r, err.Error())
		return
	}

	record, err := h.sms.Send(r.Context(), req)
	if err != nil {
		if errors.Is(err, sms.ErrDelivery) && record != nil {
			sendJSON(w, http.StatusBadGateway, errorResponse{
				Error:     err.Error(),
				Code:      http.StatusBadGateway,
				ID:        record.ID,
				RequestID: middleware.GetReqID(r.Context()),
			})
			return
		}
		sendError(w, r, err)
		return
	}

	sendJSON(w, http.StatusOK, MessageResponse{
		Message: "SMS sent successfully.",
		Code:    http.StatusOK,
		ID:      record.ID,
		Parts:   record.Parts,
	})
}

// handleGetSms handles GET /api/sms/{id}.
func (h *Handler) handleGetSms(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.sms.Get(r.Context(), id)
	if err != nil {
		sendError(w, r, err)
		return
	}
	if record == nil {
		sendJSON(w, http.StatusNotFound, errorResponse{
			Error:     "sms not found",
			Code:      http.StatusNotFound,
			RequestID: middleware.GetReqID(r.Context()),
		})
		return
	}

	sendJSON(w, http.StatusOK, record)
}

// handleListSms handles GET /api/sms?limit=n.
func (h *Handler) handleListSms(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit")
	if !ok {
		sendBadRequest(w, r, "limit must be an integer")
		return
	}

	records, err := h.sms.List(r.Context(), limit)
	if err != nil {
		sendError(w, r, err)
		return
	}
	if records == nil {
		records = []*sms.Record{}
	}

	sendJSON(w, http.StatusOK, listResponse{Sms: records})
}

// handlePreview handles POST /api/sms/preview.
func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		sendBadRequest(w, r, err.Error())
		return
	}

	preview, err := h.sms.Preview(r.Context(), req.Message)
	if err != nil {
		sendError(w, r, err)
		return
	}

	sendJSON(w, http.StatusOK, preview)
}
