package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hybridmarkets/resolver/internal/service"
)

// DisputeHandler serves the dispute threshold endpoints.
type DisputeHandler struct {
	disputes *service.DisputeService
	logger   *slog.Logger
}

// NewDisputeHandler creates a DisputeHandler.
func NewDisputeHandler(disputes *service.DisputeService, logger *slog.Logger) *DisputeHandler {
	return &DisputeHandler{
		disputes: disputes,
		logger:   logHandler(logger, "dispute"),
	}
}

// GetThreshold returns the adaptive dispute threshold for a market.
// GET /api/markets/{id}/dispute-threshold
func (h *DisputeHandler) GetThreshold(w http.ResponseWriter, r *http.Request) {
	t, err := h.disputes.CalculateThreshold(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type updateThresholdRequest struct {
	Value  int64  `json:"value"`
	Reason string `json:"reason"`
}

// UpdateThreshold sets a manual threshold override.
// PUT /api/markets/{id}/dispute-threshold
func (h *DisputeHandler) UpdateThreshold(w http.ResponseWriter, r *http.Request) {
	var req updateThresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	entry, err := h.disputes.UpdateThreshold(r.Context(), actorFrom(r), pathParam(r, "id"), req.Value, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// ThresholdHistory returns the market's threshold change log.
// GET /api/markets/{id}/dispute-threshold/history
func (h *DisputeHandler) ThresholdHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.disputes.History(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries, "count": len(entries)})
}
