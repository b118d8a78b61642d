package handler

import (
	"log/slog"
	"net/http"

	"github.com/hybridmarkets/resolver/internal/service"
)

// PayoutHandler serves the payout endpoints.
type PayoutHandler struct {
	payouts *service.PayoutService
	logger  *slog.Logger
}

// NewPayoutHandler creates a PayoutHandler.
func NewPayoutHandler(payouts *service.PayoutService, logger *slog.Logger) *PayoutHandler {
	return &PayoutHandler{
		payouts: payouts,
		logger:  logHandler(logger, "payout"),
	}
}

// PreviewPayout computes the caller's payout without moving funds.
// GET /api/markets/{id}/payout
func (h *PayoutHandler) PreviewPayout(w http.ResponseWriter, r *http.Request) {
	amount, err := h.payouts.PreviewPayout(r.Context(), actorFrom(r), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"payout": amount})
}

// ClaimPayout pays the caller their share of a resolved market.
// POST /api/markets/{id}/claim
func (h *PayoutHandler) ClaimPayout(w http.ResponseWriter, r *http.Request) {
	amount, err := h.payouts.ClaimPayout(r.Context(), actorFrom(r), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"payout": amount})
}

// CollectFee moves the platform fee for a resolved market to the treasury.
// POST /api/markets/{id}/collect-fee
func (h *PayoutHandler) CollectFee(w http.ResponseWriter, r *http.Request) {
	fee, err := h.payouts.CollectFee(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"fee": fee})
}
