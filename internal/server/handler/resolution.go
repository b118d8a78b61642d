package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hybridmarkets/resolver/internal/service"
)

// ResolutionHandler serves the resolution lifecycle endpoints.
type ResolutionHandler struct {
	resolutions *service.ResolutionService
	logger      *slog.Logger
}

// NewResolutionHandler creates a ResolutionHandler.
func NewResolutionHandler(resolutions *service.ResolutionService, logger *slog.Logger) *ResolutionHandler {
	return &ResolutionHandler{
		resolutions: resolutions,
		logger:      logHandler(logger, "resolution"),
	}
}

// FetchOracleResult pulls and records the oracle outcome for a closed market.
// POST /api/markets/{id}/oracle-result
func (h *ResolutionHandler) FetchOracleResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.resolutions.FetchOracleResult(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ResolveMarket runs the hybrid decision for a closed market.
// POST /api/markets/{id}/resolve
func (h *ResolutionHandler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	res, err := h.resolutions.ResolveMarket(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type finalizeRequest struct {
	Outcome string `json:"outcome"`
}

// FinalizeMarket sets the final outcome by admin override.
// POST /api/markets/{id}/finalize
func (h *ResolutionHandler) FinalizeMarket(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := h.resolutions.FinalizeMarket(r.Context(), actorFrom(r), pathParam(r, "id"), req.Outcome)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type disputeRequest struct {
	Stake int64 `json:"stake"`
}

// RaiseDispute contests a resolved market with a stake.
// POST /api/markets/{id}/dispute
func (h *ResolutionHandler) RaiseDispute(w http.ResponseWriter, r *http.Request) {
	var req disputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.resolutions.RaiseDispute(r.Context(), actorFrom(r), pathParam(r, "id"), req.Stake); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "disputed"})
}

// CancelMarket voids an active market, refunding every stake.
// POST /api/markets/{id}/cancel
func (h *ResolutionHandler) CancelMarket(w http.ResponseWriter, r *http.Request) {
	if err := h.resolutions.CancelMarket(r.Context(), actorFrom(r), pathParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
