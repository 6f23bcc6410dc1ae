package screener

import (
	"testing"

	"stock-analyst/models"
)

func ptr(v float64) *float64 { return &v }

func TestScore(t *testing.T) {
	tests := []struct {
		name       string
		snap       models.StockSnapshot
		want       float64
		strengths  int
		weaknesses int
	}{
		{
			name:      "no indicators",
			snap:      models.StockSnapshot{CurrentPrice: 10},
			want:      5.0,
			strengths: 1,
		},
		{
			name: "healthy rsi, momentum and valuation",
			snap: models.StockSnapshot{
				CurrentPrice:  150,
				ChangePercent: 2.5,
				PERatio:       ptr(18),
				Indicators:    models.TechnicalIndicators{RSI: ptr(55)},
			},
			want:      7.5,
			strengths: 4,
		},
		{
			name: "oversold",
			snap: models.StockSnapshot{
				CurrentPrice: 20,
				Indicators:   models.TechnicalIndicators{RSI: ptr(25)},
			},
			want:      6.5,
			strengths: 2,
		},
		{
			name: "overbought and falling",
			snap: models.StockSnapshot{
				CurrentPrice:  129,
				ChangePercent: -3,
				PERatio:       ptr(40),
				Indicators:    models.TechnicalIndicators{RSI: ptr(100)},
			},
			want:       3.5,
			strengths:  1,
			weaknesses: 2,
		},
		{
			name: "boundaries are inclusive",
			snap: models.StockSnapshot{
				CurrentPrice:  1,
				ChangePercent: 2,
				PERatio:       ptr(25),
				Indicators:    models.TechnicalIndicators{RSI: ptr(70)},
			},
			want:      7.0,
			strengths: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := Score(&tt.snap)
			if card.Score != tt.want {
				t.Errorf("Score() = %v, want %v", card.Score, tt.want)
			}
			if len(card.Strengths) != tt.strengths {
				t.Errorf("strengths = %v, want %d", card.Strengths, tt.strengths)
			}
			if len(card.Weaknesses) != tt.weaknesses {
				t.Errorf("weaknesses = %v, want %d", card.Weaknesses, tt.weaknesses)
			}
		})
	}
}

func TestScore_StaysInRange(t *testing.T) {
	for _, rsi := range []float64{0, 15, 30, 50, 70, 85, 100} {
		for _, change := range []float64{-50, -2.1, 0, 2.1, 50} {
			snap := &models.StockSnapshot{
				ChangePercent: change,
				PERatio:       ptr(15),
				Indicators:    models.TechnicalIndicators{RSI: &rsi},
			}
			if s := Score(snap).Score; s < 0 || s > 10 {
				t.Errorf("Score(rsi=%v, change=%v) = %v out of [0,10]", rsi, change, s)
			}
		}
	}
}

func TestScore_FirstStrengthIsPrice(t *testing.T) {
	card := Score(&models.StockSnapshot{CurrentPrice: 129})
	if card.Strengths[0] != "Current price: $129.00" {
		t.Errorf("first strength = %q", card.Strengths[0])
	}
}

func TestRank_StableOnTies(t *testing.T) {
	ranked := Rank([]models.ScoredSymbol{
		{Symbol: "AAPL", Score: 6},
		{Symbol: "MSFT", Score: 7},
		{Symbol: "GOOGL", Score: 6},
		{Symbol: "TSLA", Score: 7},
	})
	want := []string{"MSFT", "TSLA", "AAPL", "GOOGL"}
	for i, s := range ranked {
		if s.Symbol != want[i] {
			t.Errorf("rank %d = %s, want %s", i, s.Symbol, want[i])
		}
	}
}
