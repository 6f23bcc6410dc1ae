package models

import (
	"errors"
	"testing"
	"time"
)

func TestFormatSymbol(t *testing.T) {
	tests := []struct {
		symbol string
		market Market
		want   string
	}{
		{"aapl", MarketUS, "AAPL"},
		{" msft ", MarketUS, "MSFT"},
		{"npn", MarketZA, "NPN.JO"},
		{"NPN.JO", MarketZA, "NPN.JO"},
		{"btc", MarketCrypto, "BTC-USD"},
		{"BTC-USD", MarketCrypto, "BTC-USD"},
		{"eth-usd", MarketCrypto, "ETH-USD"},
	}

	for _, tt := range tests {
		t.Run(tt.symbol+"/"+string(tt.market), func(t *testing.T) {
			if got := FormatSymbol(tt.symbol, tt.market); got != tt.want {
				t.Errorf("FormatSymbol(%q, %s) = %q, want %q", tt.symbol, tt.market, got, tt.want)
			}
		})
	}
}

func TestDetermineMarket(t *testing.T) {
	tests := []struct {
		symbol string
		want   Market
	}{
		{"AAPL", MarketUS},
		{"SHP.JO", MarketZA},
		{"npn.jo", MarketZA},
		{"BTC-USD", MarketCrypto},
		{"DOGE-USD", MarketCrypto},
		{"BRK.B", MarketUS},
	}

	for _, tt := range tests {
		if got := DetermineMarket(tt.symbol); got != tt.want {
			t.Errorf("DetermineMarket(%q) = %s, want %s", tt.symbol, got, tt.want)
		}
	}
}

func TestParseMarket(t *testing.T) {
	for _, in := range []string{"US", "us", " za ", "CRYPTO"} {
		if _, err := ParseMarket(in); err != nil {
			t.Errorf("ParseMarket(%q) unexpected error: %v", in, err)
		}
	}

	_, err := ParseMarket("LSE")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestMarketCurrency(t *testing.T) {
	if MarketUS.Currency() != "USD" {
		t.Errorf("US currency = %s", MarketUS.Currency())
	}
	if MarketZA.Currency() != "ZAR" {
		t.Errorf("ZA currency = %s", MarketZA.Currency())
	}
	if MarketCrypto.Currency() != "USD" {
		t.Errorf("CRYPTO currency = %s", MarketCrypto.Currency())
	}
}

func TestTradingSessionStatus(t *testing.T) {
	us := DefaultSessions[0]

	// Wednesday 2024-01-10 15:00 UTC is 10:00 in New York
	open, err := us.Status(time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !open.IsOpen {
		t.Error("expected US market open on a weekday morning")
	}

	// Saturday
	closed, err := us.Status(time.Date(2024, 1, 13, 15, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed.IsOpen {
		t.Error("expected US market closed on Saturday")
	}

	// Wednesday 2024-01-10 16:00 UTC is 18:00 in Johannesburg
	za, err := DefaultSessions[1].Status(time.Date(2024, 1, 10, 16, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if za.IsOpen {
		t.Error("expected JSE closed after 17:00 local")
	}

	crypto, _ := DefaultSessions[2].Status(time.Date(2024, 1, 13, 3, 0, 0, 0, time.UTC))
	if !crypto.IsOpen {
		t.Error("crypto should always be open")
	}
}
