package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hybridmarkets/resolver/internal/domain"
	"github.com/hybridmarkets/resolver/internal/service"
)

// MarketHandler serves market CRUD and participation endpoints.
type MarketHandler struct {
	markets *service.MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets *service.MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logHandler(logger, "market"),
	}
}

// ListMarkets returns active markets.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := h.markets.ListActive(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.Error("list markets failed", slog.String("error", err.Error()))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": markets, "count": len(markets)})
}

// GetMarket returns a single market by ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	m, err := h.markets.GetMarket(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type createMarketRequest struct {
	Question         string    `json:"question"`
	Outcomes         []string  `json:"outcomes"`
	EndTime          time.Time `json:"end_time"`
	Admin            string    `json:"admin"`
	OracleProvider   string    `json:"oracle_provider"`
	OracleFeedID     string    `json:"oracle_feed_id"`
	OracleThreshold  int64     `json:"oracle_threshold"`
	OracleComparator string    `json:"oracle_comparator"`
	MaxExtensionDays int       `json:"max_extension_days,omitempty"`
}

// CreateMarket registers a new market.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	m, err := h.markets.CreateMarket(r.Context(), domain.Market{
		Question: req.Question,
		Outcomes: req.Outcomes,
		EndTime:  req.EndTime,
		Admin:    req.Admin,
		Oracle: domain.OracleConfig{
			Provider:   req.OracleProvider,
			FeedID:     req.OracleFeedID,
			Threshold:  req.OracleThreshold,
			Comparator: domain.Comparator(req.OracleComparator),
		},
		MaxExtensionDays: req.MaxExtensionDays,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

type placeBetRequest struct {
	Outcome string `json:"outcome"`
	Amount  int64  `json:"amount"`
}

// PlaceBet records the caller's vote and stake on an outcome.
// POST /api/markets/{id}/bets
func (h *MarketHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	bet, err := h.markets.PlaceBet(r.Context(), actorFrom(r), pathParam(r, "id"), req.Outcome, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}
