package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// CoinGeckoProvider fetches USD prices from the CoinGecko simple-price API.
// Feed IDs are CoinGecko asset identifiers, e.g. "bitcoin".
type CoinGeckoProvider struct {
	baseURL    string
	scale      int64
	httpClient *http.Client
}

// NewCoinGeckoProvider creates a CoinGecko price provider.
//
// baseURL is the API root, e.g. "https://api.coingecko.com".
func NewCoinGeckoProvider(baseURL string, timeout time.Duration, scale int64) *CoinGeckoProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CoinGeckoProvider{
		baseURL: baseURL,
		scale:   scale,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the provider tag.
func (p *CoinGeckoProvider) Name() string { return "coingecko" }

// GetPrice returns the current USD price for the given asset identifier,
// scaled to a fixed-point integer.
func (p *CoinGeckoProvider) GetPrice(ctx context.Context, feedID string) (int64, error) {
	params := url.Values{}
	params.Set("ids", feedID)
	params.Set("vs_currencies", "usd")

	endpoint := p.baseURL + "/api/v3/simple/price?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("oracle/coingecko: build request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("oracle/coingecko: get %s: %w: %v", feedID, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("oracle/coingecko: get %s: %w: status %d", feedID, ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return 0, fmt.Errorf("oracle/coingecko: read body: %w", err)
	}

	// Decode with json.Number so the decimal survives until scaling.
	var payload map[string]map[string]json.Number
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return 0, fmt.Errorf("oracle/coingecko: decode price: %w", err)
	}

	asset, ok := payload[feedID]
	if !ok {
		return 0, fmt.Errorf("oracle/coingecko: no price for %s: %w", feedID, ErrUnavailable)
	}
	price, ok := asset["usd"]
	if !ok || price.String() == "" {
		return 0, fmt.Errorf("oracle/coingecko: no usd quote for %s: %w", feedID, ErrUnavailable)
	}

	return scalePrice(price.String(), p.scale)
}

// Compile-time interface check.
var _ PriceProvider = (*CoinGeckoProvider)(nil)
