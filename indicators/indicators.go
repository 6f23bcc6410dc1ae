// Package indicators computes technical indicators from a closing price series.
// All functions are pure; results that cannot be computed are returned as nil.
package indicators

import (
	"math"

	"stock-analyst/models"
)

// Indicator parameters
const (
	MinPoints    = 14
	RSIPeriod    = 14
	MACDFast     = 12
	MACDSlow     = 26
	MACDSignal   = 9
	MACDMinPoint = MACDSlow + MACDSignal
)

// SMAPeriods are the simple moving average windows reported on snapshots
var SMAPeriods = []int{20, 50, 200}

// Compute derives all indicators from chronological closes.
// Fewer than MinPoints closes yields an empty result.
func Compute(closes []float64) models.TechnicalIndicators {
	var out models.TechnicalIndicators
	if len(closes) < MinPoints {
		return out
	}

	out.RSI = RSI(closes, RSIPeriod)
	out.SMA20 = SMA(closes, SMAPeriods[0])
	out.SMA50 = SMA(closes, SMAPeriods[1])
	out.SMA200 = SMA(closes, SMAPeriods[2])

	if m, ok := MACD(closes, MACDFast, MACDSlow, MACDSignal); ok {
		out.MACDLine = finite(m.Line)
		out.MACDSignal = finite(m.Signal)
		out.MACDHistogram = finite(m.Histogram)
	}

	return out
}

// SMA returns the arithmetic mean of the last period closes
func SMA(closes []float64, period int) *float64 {
	if period <= 0 || len(closes) < period {
		return nil
	}
	sum := 0.0
	for _, p := range closes[len(closes)-period:] {
		sum += p
	}
	return finite(sum / float64(period))
}

// RSI computes the relative strength index using a simple rolling mean of
// gains and losses over the last period deltas.
func RSI(closes []float64, period int) *float64 {
	if period <= 0 || len(closes) < period+1 {
		return nil
	}

	var gains, losses float64
	start := len(closes) - period
	for i := start; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	// gain/0 is +Inf which maps to 100; 0/0 stays NaN and is dropped
	rs := avgGain / avgLoss
	return finite(100 - 100/(1+rs))
}

// EMASeries returns the span-based exponential moving average at every point,
// weighting observation i back by (1-alpha)^i and normalizing by the weight
// sum (the adjusted form).
func EMASeries(values []float64, span int) []float64 {
	if span <= 0 || len(values) == 0 {
		return nil
	}

	alpha := 2.0 / (float64(span) + 1)
	decay := 1 - alpha

	out := make([]float64, len(values))
	var num, den float64
	for i, v := range values {
		num = v + decay*num
		den = 1 + decay*den
		out[i] = num / den
	}
	return out
}

// MACDValues holds the latest MACD readings
type MACDValues struct {
	Line      float64
	Signal    float64
	Histogram float64
}

// MACD computes the MACD line, signal and histogram at the last point.
// EMAs run over the entire series. ok is false when there are fewer than
// slow+signal closes.
func MACD(closes []float64, fast, slow, signal int) (MACDValues, bool) {
	if len(closes) < slow+signal {
		return MACDValues{}, false
	}

	emaFast := EMASeries(closes, fast)
	emaSlow := EMASeries(closes, slow)

	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = emaFast[i] - emaSlow[i]
	}
	sig := EMASeries(line, signal)

	last := len(closes) - 1
	return MACDValues{
		Line:      line[last],
		Signal:    sig[last],
		Histogram: line[last] - sig[last],
	}, true
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
