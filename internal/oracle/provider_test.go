package oracle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hybridmarkets/resolver/internal/domain"
)

func TestNew(t *testing.T) {
	cfg := Config{
		BinanceBaseURL:   "https://api.binance.com",
		CoinGeckoBaseURL: "https://api.coingecko.com",
		Timeout:          time.Second,
		PriceScale:       1,
	}

	tests := []struct {
		tag      string
		wantName string
		wantErr  bool
	}{
		{"binance", "binance", false},
		{"coingecko", "coingecko", false},
		{"chainlink", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run("tag "+tt.tag, func(t *testing.T) {
			p, err := New(tt.tag, cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("New() expected error, got nil")
				}
				if code := domain.CodeOf(err); code != domain.CodeUnknownProvider {
					t.Errorf("New() code = %q, want %q", code, domain.CodeUnknownProvider)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
		})
	}
}

func TestScalePrice(t *testing.T) {
	tests := []struct {
		in      string
		scale   int64
		want    int64
		wantErr bool
	}{
		{"52000.25", 1000, 52000250, false},
		{"52000", 1, 52000, false},
		{"0.5", 100, 50, false},
		// Rounds half away from zero.
		{"1.5", 1, 2, false},
		{"not-a-number", 1, 0, true},
		{"-5", 1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := scalePrice(tt.in, tt.scale)
			if (err != nil) != tt.wantErr {
				t.Fatalf("scalePrice(%q, %d) error = %v, wantErr %v", tt.in, tt.scale, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("scalePrice(%q, %d) = %d, want %d", tt.in, tt.scale, got, tt.want)
			}
		})
	}
}

func TestBinanceGetPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/price" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol = %q, want BTCUSDT", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"104000.50"}`))
	}))
	defer srv.Close()

	p := NewBinanceProvider(srv.URL, time.Second, 100)
	got, err := p.GetPrice(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetPrice() error = %v", err)
	}
	if got != 10400050 {
		t.Errorf("GetPrice() = %d, want 10400050", got)
	}
}

func TestBinanceGetPriceUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "empty price",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"symbol":"BTCUSDT"}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			p := NewBinanceProvider(srv.URL, time.Second, 1)
			_, err := p.GetPrice(context.Background(), "BTCUSDT")
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("GetPrice() error = %v, want ErrUnavailable", err)
			}
		})
	}
}

func TestCoinGeckoGetPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/simple/price" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("ids") != "bitcoin" || q.Get("vs_currencies") != "usd" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"bitcoin":{"usd":104000.5}}`))
	}))
	defer srv.Close()

	p := NewCoinGeckoProvider(srv.URL, time.Second, 100)
	got, err := p.GetPrice(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("GetPrice() error = %v", err)
	}
	if got != 10400050 {
		t.Errorf("GetPrice() = %d, want 10400050", got)
	}
}

func TestCoinGeckoGetPriceMissingAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := NewCoinGeckoProvider(srv.URL, time.Second, 1)
	_, err := p.GetPrice(context.Background(), "bitcoin")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("GetPrice() error = %v, want ErrUnavailable", err)
	}
}
