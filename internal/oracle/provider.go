// Package oracle provides price feed clients behind a single PriceProvider
// interface, one implementation per provider, selected by a factory keyed on
// the provider tag a market is configured with.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/hybridmarkets/resolver/internal/domain"
)

// ErrUnavailable is returned when a provider cannot produce a price. The
// service layer maps it to an oracle_unavailable resource error.
var ErrUnavailable = errors.New("oracle unavailable")

// PriceProvider returns the current price for a feed identifier as a
// fixed-point integer in the smallest currency unit.
type PriceProvider interface {
	GetPrice(ctx context.Context, feedID string) (int64, error)
	Name() string
}

// Config holds provider endpoints and the fixed-point scale applied to
// decimal feed prices.
type Config struct {
	BinanceBaseURL   string
	CoinGeckoBaseURL string
	Timeout          time.Duration
	PriceScale       int64
}

// New is the provider factory. It returns the implementation registered for
// the given tag or an unknown_provider validation error.
func New(tag string, cfg Config) (PriceProvider, error) {
	switch tag {
	case "binance":
		return NewBinanceProvider(cfg.BinanceBaseURL, cfg.Timeout, cfg.PriceScale), nil
	case "coingecko":
		return NewCoinGeckoProvider(cfg.CoinGeckoBaseURL, cfg.Timeout, cfg.PriceScale), nil
	}
	return nil, domain.Validation(domain.CodeUnknownProvider,
		fmt.Sprintf("no price provider registered for tag %q", tag))
}

// scalePrice converts a decimal price string into a fixed-point integer with
// the given scale, e.g. "52000.25" at scale 1000 -> 52000250.
func scalePrice(s string, scale int64) (int64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("oracle: parse price %q: %w", s, err)
	}
	scaled := math.Round(f * float64(scale))
	if scaled > math.MaxInt64 || scaled < 0 {
		return 0, fmt.Errorf("oracle: price %q out of range at scale %d", s, scale)
	}
	return int64(scaled), nil
}
