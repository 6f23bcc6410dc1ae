package models

import (
	"time"

	"github.com/google/uuid"
)

// ScoredSymbol is one ranked entry of a comparison
type ScoredSymbol struct {
	Symbol     string   `json:"symbol"`
	Score      float64  `json:"score"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
}

// ComparisonResult ranks a set of snapshots by heuristic score
type ComparisonResult struct {
	ID         uuid.UUID      `json:"id"`
	Symbols    []string       `json:"symbols"`
	Comparison []ScoredSymbol `json:"comparison"`
	Winner     string         `json:"winner"`
	Reasoning  []string       `json:"reasoning"`
	Usage      Usage          `json:"usage"`
	Timestamp  time.Time      `json:"timestamp"`
}
