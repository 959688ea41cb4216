package forecast

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cycle-trader/internal/params"
)

func risingSeries(n int, start float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}

func TestPredictTSFPerPair(t *testing.T) {
	svc := NewService(nil)
	series := map[string][]float64{
		"BTC_ETH": risingSeries(30, 100),
		"BTC_ZEC": risingSeries(30, 10),
	}

	got, err := svc.Predict(context.Background(), series, 2, nil, "tsf")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 130, got["BTC_ETH"][1], 1e-6)
	assert.InDelta(t, 131, got["BTC_ETH"][2], 1e-6)
	assert.InDelta(t, 40, got["BTC_ZEC"][1], 1e-6)
	assert.Equal(t, []string{"BTC_ETH", "BTC_ZEC"}, got.Pairs())
}

func TestPredictExcludesFailingPair(t *testing.T) {
	svc := NewService(nil)
	series := map[string][]float64{
		"BTC_ETH": risingSeries(30, 100),
		"BTC_ZEC": risingSeries(3, 10),
		"BTC_LTC": nil,
	}

	got, err := svc.Predict(context.Background(), series, 1, nil, "LINEARREG")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "BTC_ETH")
}

func TestPredictAllFailReturnsError(t *testing.T) {
	svc := NewService(nil)
	series := map[string][]float64{"BTC_ZEC": risingSeries(3, 10)}

	got, err := svc.Predict(context.Background(), series, 1, nil, "EMA")
	var forecastErr *Error
	require.ErrorAs(t, err, &forecastErr)
	assert.Equal(t, "EMA", forecastErr.Algorithm)
	assert.Contains(t, forecastErr.Failures, "BTC_ZEC")
	assert.Empty(t, got)
}

func TestPredictUnknownAlgorithm(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.Predict(context.Background(), map[string][]float64{"BTC_ETH": {1}}, 1, nil, "PROPHET")
	var cfgErr *params.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
	assert.False(t, svc.Supports("PROPHET"))
	assert.True(t, svc.Supports("tsf"))
}

func TestPredictAutoregressiveAliases(t *testing.T) {
	svc := NewService(nil)
	series := map[string][]float64{"BTC_ETH": make([]float64, 30)}
	for i := range series["BTC_ETH"] {
		series["BTC_ETH"][i] = 100 + float64(i)
	}

	want, err := svc.Predict(context.Background(), series, 2, nil, "TSF")
	require.NoError(t, err)
	for _, alias := range []string{"ARIMA", "sarima"} {
		assert.True(t, svc.Supports(alias))
		got, err := svc.Predict(context.Background(), series, 2, map[string]any{"p": 1, "d": 1, "q": 1}, alias)
		require.NoError(t, err, alias)
		assert.InDelta(t, want["BTC_ETH"][2], got["BTC_ETH"][2], 1e-9, alias)
	}
}

func TestPredictEmptySeries(t *testing.T) {
	got, err := NewService(nil).Predict(context.Background(), nil, 3, nil, "TSF")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPredictUsesRegisteredPredictor(t *testing.T) {
	svc := NewService(nil)
	var seenHyper map[string]any
	svc.Register("custom", PredictorFunc(func(_ context.Context, pair string, series []float64, steps int, hyper map[string]any) ([]float64, error) {
		if pair == "BTC_ZEC" {
			return nil, errors.New("boom")
		}
		seenHyper = hyper
		return []float64{series[len(series)-1] * 2}, nil
	}))

	hyper := map[string]any{"CUSTOM": map[string]any{"alpha": 0.5}}
	got, err := svc.Predict(context.Background(), map[string][]float64{"BTC_ETH": {1, 2}, "BTC_ZEC": {3}}, 1, hyper, "CUSTOM")
	require.NoError(t, err)
	assert.Equal(t, Prediction{"BTC_ETH": {1: 4}}, got)
	assert.Equal(t, map[string]any{"alpha": 0.5}, seenHyper)
}

func TestPredictRejectsShortForecast(t *testing.T) {
	svc := NewService(nil)
	svc.Register("short", PredictorFunc(func(context.Context, string, []float64, int, map[string]any) ([]float64, error) {
		return []float64{1}, nil
	}))
	_, err := svc.Predict(context.Background(), map[string][]float64{"BTC_ETH": {1}}, 2, nil, "short")
	var forecastErr *Error
	assert.ErrorAs(t, err, &forecastErr)
}

type fakeLLM struct{}

func (fakeLLM) Forecast(_ context.Context, _ string, series []float64, steps int) ([]float64, error) {
	out := make([]float64, steps)
	for i := range out {
		out[i] = series[len(series)-1]
	}
	return out, nil
}

func TestRegisterLLM(t *testing.T) {
	svc := NewService(nil)
	svc.RegisterLLM(fakeLLM{})

	got, err := svc.Predict(context.Background(), map[string][]float64{"BTC_ETH": {0.02, 0.03}}, 2, nil, "openai")
	require.NoError(t, err)
	assert.Equal(t, Prediction{"BTC_ETH": {1: 0.03, 2: 0.03}}, got)
}

func TestResolveHyperparameters(t *testing.T) {
	assert.Equal(t, map[string]any{"timeperiod": 14}, resolveHyperparameters("TSF", nil))
	assert.Equal(t, map[string]any{"timeperiod": 5}, resolveHyperparameters("TSF", map[string]any{"tsf": map[string]any{"timeperiod": 5}}))
	assert.Equal(t, map[string]any{"timeperiod": 7}, resolveHyperparameters("EMA", map[string]any{"timeperiod": 7}))
	assert.Equal(t, map[string]any{"timeperiod": 10}, resolveHyperparameters("EMA", map[string]any{"TSF": map[string]any{"timeperiod": 5}}))
}
