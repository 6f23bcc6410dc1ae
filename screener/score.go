package screener

import (
	"fmt"
	"sort"

	"stock-analyst/models"
)

const (
	baseScore = 5.0
	minScore  = 0.0
	maxScore  = 10.0
)

// Scorecard is a heuristic score together with the factors that moved it
type Scorecard struct {
	Score      float64
	Strengths  []string
	Weaknesses []string
}

// Score rates a snapshot on a 0-10 scale starting from 5.0.
// RSI in the normal 30-70 band adds 1.0, oversold adds 1.5 and overbought
// subtracts 1.0. A daily move beyond +/-2% adds or subtracts 0.5. A P/E
// between 10 and 25 adds 1.0. Missing RSI or P/E contribute nothing.
func Score(snap *models.StockSnapshot) Scorecard {
	card := Scorecard{
		Score:      baseScore,
		Strengths:  []string{fmt.Sprintf("Current price: $%.2f", snap.CurrentPrice)},
		Weaknesses: []string{},
	}

	if rsi := snap.Indicators.RSI; rsi != nil {
		switch {
		case *rsi >= 30 && *rsi <= 70:
			card.Score += 1.0
			card.Strengths = append(card.Strengths, fmt.Sprintf("RSI %.2f in a healthy range", *rsi))
		case *rsi < 30:
			card.Score += 1.5
			card.Strengths = append(card.Strengths, fmt.Sprintf("RSI %.2f suggests oversold", *rsi))
		default:
			card.Score -= 1.0
			card.Weaknesses = append(card.Weaknesses, fmt.Sprintf("RSI %.2f suggests overbought", *rsi))
		}
	}

	switch {
	case snap.ChangePercent > 2:
		card.Score += 0.5
		card.Strengths = append(card.Strengths, fmt.Sprintf("Positive momentum (%+.2f%%)", snap.ChangePercent))
	case snap.ChangePercent < -2:
		card.Score -= 0.5
		card.Weaknesses = append(card.Weaknesses, fmt.Sprintf("Negative momentum (%+.2f%%)", snap.ChangePercent))
	}

	if pe := snap.PERatio; pe != nil && *pe >= 10 && *pe <= 25 {
		card.Score += 1.0
		card.Strengths = append(card.Strengths, fmt.Sprintf("Reasonable valuation (P/E %.2f)", *pe))
	}

	card.Score = max(minScore, min(maxScore, card.Score))
	return card
}

// Rank sorts scored symbols by score descending. Ties keep their input
// order so the first symbol wins.
func Rank(scored []models.ScoredSymbol) []models.ScoredSymbol {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}
