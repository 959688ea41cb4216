package feature

import (
	"errors"
	"math"

	talib "github.com/markcheno/go-talib"

	"cycle-trader/internal/indicator"
)

const (
	emaPeriod = 12
	rsiPeriod = 14
	tailSize  = 24
)

// SeriesSummary 描述一个历史序列的统计特征，用于提示词拼装。
type SeriesSummary struct {
	Pair      string    `json:"pair"`
	Count     int       `json:"count"`
	Last      float64   `json:"last"`
	Previous  float64   `json:"previous"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
	ChangePct float64   `json:"change_pct"`
	EMA12     float64   `json:"ema12"`
	RSI14     float64   `json:"rsi14"`
	RSIState  string    `json:"rsi_state"`
	Tail      []float64 `json:"tail"`
}

// Summarize 计算序列的统计特征。
func Summarize(pair string, series []float64) (SeriesSummary, error) {
	if len(series) < 2 {
		return SeriesSummary{}, errors.New("feature: 序列至少需要2个点")
	}

	minV, maxV, sum := math.Inf(1), math.Inf(-1), 0.0
	for _, v := range series {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
		sum += v
	}
	mean := sum / float64(len(series))

	variance := 0.0
	for _, v := range series {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(series))

	first := series[0]
	last := indicator.Last(series)

	summary := SeriesSummary{
		Pair:      pair,
		Count:     len(series),
		Last:      last,
		Previous:  indicator.Prev(series),
		Min:       minV,
		Max:       maxV,
		Mean:      mean,
		StdDev:    math.Sqrt(variance),
		ChangePct: clean(indicator.SafeDivide(last-first, first) * 100),
		Tail:      indicator.SliceTail(series, tailSize),
	}
	if len(series) > emaPeriod {
		summary.EMA12 = clean(indicator.Last(talib.Ema(series, emaPeriod)))
	}
	if len(series) > rsiPeriod {
		summary.RSI14 = clean(indicator.Last(talib.Rsi(series, rsiPeriod)))
		summary.RSIState = determineRSIState(summary.RSI14)
	}
	return summary, nil
}

func determineRSIState(rsi float64) string {
	rsi = clean(rsi)
	switch {
	case rsi >= 70:
		return "overbought"
	case rsi <= 30:
		return "oversold"
	default:
		return "neutral"
	}
}

func clean(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}
