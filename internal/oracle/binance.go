package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// BinanceProvider fetches spot prices from the Binance public ticker API.
// Feed IDs are Binance symbols, e.g. "BTCUSDT".
type BinanceProvider struct {
	baseURL    string
	scale      int64
	httpClient *http.Client
}

// NewBinanceProvider creates a Binance price provider.
//
// baseURL is the API root, e.g. "https://api.binance.com".
func NewBinanceProvider(baseURL string, timeout time.Duration, scale int64) *BinanceProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BinanceProvider{
		baseURL: baseURL,
		scale:   scale,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the provider tag.
func (p *BinanceProvider) Name() string { return "binance" }

// tickerResponse is the Binance /api/v3/ticker/price payload.
type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// GetPrice returns the current price for the given symbol, scaled to a
// fixed-point integer. Transport failures and non-200 responses surface as
// ErrUnavailable so the caller can apply its retry policy.
func (p *BinanceProvider) GetPrice(ctx context.Context, feedID string) (int64, error) {
	params := url.Values{}
	params.Set("symbol", feedID)

	endpoint := p.baseURL + "/api/v3/ticker/price?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("oracle/binance: build request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("oracle/binance: get %s: %w: %v", feedID, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("oracle/binance: get %s: %w: status %d", feedID, ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return 0, fmt.Errorf("oracle/binance: read body: %w", err)
	}

	var ticker tickerResponse
	if err := json.Unmarshal(body, &ticker); err != nil {
		return 0, fmt.Errorf("oracle/binance: decode ticker: %w", err)
	}
	if ticker.Price == "" {
		return 0, fmt.Errorf("oracle/binance: empty price for %s: %w", feedID, ErrUnavailable)
	}

	return scalePrice(ticker.Price, p.scale)
}

// Compile-time interface check.
var _ PriceProvider = (*BinanceProvider)(nil)
