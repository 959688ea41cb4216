package exchange

import (
	"fmt"
	"strings"
)

// 支持的采样周期（秒）与 ccxt 时间框架的对应关系。
var periodTimeframes = map[int]string{
	300:   "5m",
	900:   "15m",
	1800:  "30m",
	7200:  "2h",
	14400: "4h",
	86400: "1d",
}

// Periods 返回受支持的采样周期，按升序排列。
func Periods() []int {
	return []int{300, 900, 1800, 7200, 14400, 86400}
}

// TimeframeForPeriod 将采样周期转换为 ccxt 时间框架。
func TimeframeForPeriod(period int) (string, error) {
	tf, ok := periodTimeframes[period]
	if !ok {
		return "", fmt.Errorf("exchange: 不支持的采样周期 %d", period)
	}
	return tf, nil
}

// LearnOnFields 为K线中可作为预测序列的字段。
var LearnOnFields = []string{"open", "high", "low", "close", "volume", "quoteVolume", "weightedAverage"}

// Field 按名称读取K线字段。
func (c Candle) Field(name string) (float64, error) {
	switch strings.ToLower(name) {
	case "open":
		return c.Open, nil
	case "high":
		return c.High, nil
	case "low":
		return c.Low, nil
	case "close":
		return c.Close, nil
	case "volume":
		return c.Volume, nil
	case "quotevolume":
		return c.Volume * c.typicalPrice(), nil
	case "weightedaverage":
		return c.typicalPrice(), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
}

// OHLCV 不带成交均价，用典型价格近似
func (c Candle) typicalPrice() float64 {
	return (c.High + c.Low + c.Close) / 3
}
