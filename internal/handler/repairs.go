package handler

import (
	"log/slog"
	"net/http"

	"storefront/internal/model"
	"storefront/internal/validate"
)

// handleCreateRepair accepts a repair request and emails the customer and
// staff. Email failures are reported in the body and never fail the request.
// POST /repairs
func (h *Handler) handleCreateRepair(w http.ResponseWriter, r *http.Request) {
	var req model.RepairRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		h.writeError(w, err)
		return
	}

	id := model.NewRepairID()
	h.logger.InfoContext(r.Context(), "repair request received",
		slog.String("request_id", id),
		slog.String("urgency", req.Urgency),
	)

	var emailSent bool
	if h.repairs != nil {
		d := h.repairs.SendRepairEmails(r.Context(), &req, id)
		emailSent = d.CustomerSent
		h.logger.InfoContext(r.Context(), "repair request emails processed",
			slog.String("request_id", id),
			slog.Bool("customer_email_sent", d.CustomerSent),
			slog.Bool("staff_email_sent", d.StaffSent),
		)
	} else {
		h.logger.WarnContext(r.Context(), "mail not configured, repair emails skipped", slog.String("request_id", id))
	}

	h.writeJSON(w, http.StatusOK, model.RepairResponse{
		Success:   true,
		Message:   "Repair request submitted successfully",
		RequestID: id,
		EmailSent: emailSent,
	})
}

// handleRepairInfo describes the repair endpoint.
// GET /repairs
func (h *Handler) handleRepairInfo(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, repairInfoResponse{
		Message:        "Repair request endpoint",
		Method:         http.MethodPost,
		RequiredFields: model.RepairRequestFields,
	})
}

type repairInfoResponse struct {
	Message        string   `json:"message"`
	Method         string   `json:"method"`
	RequiredFields []string `json:"requiredFields"`
}
