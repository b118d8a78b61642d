package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hybridmarkets/resolver/internal/service"
)

// ExtensionHandler serves the voting-window extension endpoints.
type ExtensionHandler struct {
	extensions *service.ExtensionService
	logger     *slog.Logger
}

// NewExtensionHandler creates an ExtensionHandler.
func NewExtensionHandler(extensions *service.ExtensionService, logger *slog.Logger) *ExtensionHandler {
	return &ExtensionHandler{
		extensions: extensions,
		logger:     logHandler(logger, "extension"),
	}
}

type extendRequest struct {
	Days   int    `json:"days"`
	Reason string `json:"reason"`
}

// ExtendMarket moves the market's end time forward for a fee.
// POST /api/markets/{id}/extend
func (h *ExtensionHandler) ExtendMarket(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := h.extensions.ExtendMarket(r.Context(), actorFrom(r), pathParam(r, "id"), req.Days, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListExtensions returns the market's extension log.
// GET /api/markets/{id}/extensions
func (h *ExtensionHandler) ListExtensions(w http.ResponseWriter, r *http.Request) {
	recs, err := h.extensions.ListExtensions(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"extensions": recs, "count": len(recs)})
}
