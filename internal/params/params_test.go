package params

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func validRaw() map[string]any {
	return map[string]any{
		"budget":                  1.0,
		"pairs":                   []any{"btc_eth", "BTC_ZEC"},
		"risk":                    50,
		"window":                  map[string]any{"week": 2},
		"period":                  "1800",
		"steps":                   3,
		"top_n":                   2,
		"common_currency":         "btc",
		"THRESHOLD":               0.0001,
		"current_price_buy_from":  "lowestAsk",
		"current_price_sell_from": "highestBid",
		"learn_on":                "weightedaverage",
		"reopen":                  true,
		"hyperparameters":         map[string]any{"TSF": map[string]any{"period": 10}},
		"algorithm":               "tsf",
	}
}

func TestParse_Valid(t *testing.T) {
	p, err := Parse(validRaw())
	require.NoError(t, err)

	assert.Equal(t, 1.0, p.Budget)
	assert.Equal(t, []string{"BTC_ETH", "BTC_ZEC"}, p.Pairs)
	assert.Equal(t, 50, p.Risk)
	assert.Equal(t, map[string]int{"WEEK": 2}, p.Window)
	assert.Equal(t, 1800, p.Period)
	assert.Equal(t, 3, p.Steps)
	assert.Equal(t, 2, p.TopN)
	assert.Equal(t, "BTC", p.CommonCurrency)
	assert.InDelta(t, 0.0001, p.Threshold, 1e-12)
	assert.Equal(t, "weightedAverage", p.LearnOn)
	assert.True(t, p.Reopen)
	assert.Equal(t, "TSF", p.Algorithm)
	assert.Contains(t, p.Hyperparameters, "TSF")
}

func TestParse_LowercaseThresholdKey(t *testing.T) {
	raw := validRaw()
	delete(raw, "THRESHOLD")
	raw["threshold"] = 0.5

	p, err := Parse(raw)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p.Threshold, 1e-12)
}

func TestParse_MissingRequiredField(t *testing.T) {
	raw := validRaw()
	delete(raw, "steps")
	delete(raw, "algorithm")

	_, err := Parse(raw)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "steps")
	assert.Contains(t, err.Error(), "algorithm")
}

func TestParse_InvalidValues(t *testing.T) {
	cases := map[string]func(map[string]any){
		"negative budget":    func(m map[string]any) { m["budget"] = -1 },
		"zero steps":         func(m map[string]any) { m["steps"] = 0 },
		"zero top_n":         func(m map[string]any) { m["top_n"] = 0 },
		"bad period":         func(m map[string]any) { m["period"] = 60 },
		"empty pairs":        func(m map[string]any) { m["pairs"] = []any{} },
		"malformed pair":     func(m map[string]any) { m["pairs"] = []any{"BTCETH"} },
		"duplicate pairs":    func(m map[string]any) { m["pairs"] = []any{"BTC_ETH", "btc_eth"} },
		"two window units":   func(m map[string]any) { m["window"] = map[string]any{"DAY": 1, "WEEK": 1} },
		"zero window":        func(m map[string]any) { m["window"] = map[string]any{"DAY": 0} },
		"unknown learn_on":   func(m map[string]any) { m["learn_on"] = "spread" },
		"malformed number":   func(m map[string]any) { m["steps"] = "many" },
		"negative THRESHOLD": func(m map[string]any) { m["THRESHOLD"] = -0.1 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			raw := validRaw()
			mutate(raw)
			_, err := Parse(raw)
			var cfgErr *ConfigurationError
			require.Error(t, err)
			assert.True(t, errors.As(err, &cfgErr), "expected *ConfigurationError, got %T", err)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(nil)
	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestParse_RiskIsNotRejected(t *testing.T) {
	raw := validRaw()
	raw["risk"] = 150
	p, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, 150, p.Risk)
}

func TestMerge(t *testing.T) {
	base := map[string]any{"budget": 1, "THRESHOLD": 0.1}
	override := map[string]any{"threshold": 0.2, "steps": 2}

	merged := Merge(base, override)
	assert.Equal(t, 1, merged["budget"])
	assert.Equal(t, 0.2, merged["threshold"])
	assert.Equal(t, 2, merged["steps"])
	assert.Len(t, merged, 3)
	assert.Equal(t, 0.1, base["THRESHOLD"])
}

func TestResolveWindow(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		window map[string]int
		want   time.Duration
	}{
		{map[string]int{"HOUR": 6}, 6 * time.Hour},
		{map[string]int{"DAY": 2}, 48 * time.Hour},
		{map[string]int{"WEEK": 1}, 7 * 24 * time.Hour},
		{map[string]int{"MONTH": 2}, 8 * 7 * 24 * time.Hour},
	}
	for _, tc := range cases {
		r := ResolveWindow(tc.window, now, nil)
		assert.Equal(t, now, r.End)
		assert.Equal(t, tc.want, r.Duration(), "window %v", tc.window)
	}
}

func TestResolveWindow_UnknownUnitFallsBackWithWarning(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	r := ResolveWindow(map[string]int{"FORTNIGHT": 1}, now, logger)

	assert.Equal(t, 4*7*24*time.Hour, r.Duration())
	assert.Equal(t, 1, logs.Len())
}

func TestCustomValidatorsRegistered(t *testing.T) {
	require.NotPanics(t, func() {
		assert.NoError(t, validate.Var("BTC_ETH", "pair"))
		assert.Error(t, validate.Var("BTCETH", "pair"))
		assert.Error(t, validate.Var(map[string]int{"DAY": 1, "WEEK": 1}, "window"))
	})
}
