package planner

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cycle-trader/internal/exchange"
	"cycle-trader/internal/forecast"
	"cycle-trader/internal/position"
)

func baseSettings(pairs ...string) Settings {
	return Settings{
		Pairs:     pairs,
		Steps:     1,
		Threshold: 0.0001,
		BuyField:  "lowestAsk",
		SellField: "highestBid",
	}
}

func TestCandidates_BuyScenario(t *testing.T) {
	snapshot := exchange.Snapshot{
		Ticker: map[string]exchange.Ticker{
			"BTC_ETH": {"lowestAsk": 0.025, "highestBid": 0.024},
		},
		Fees: exchange.FeeInfo{MakerFee: 0.1, TakerFee: 0.1},
	}
	prediction := forecast.Prediction{"BTC_ETH": {1: 0.03}}

	plans := NewBuilder(baseSettings("BTC_ETH"), prediction, snapshot, nil, nil).Candidates()
	require.Len(t, plans, 1)
	require.Len(t, plans[0], 1)

	op := plans[0][0]
	assert.Equal(t, OpBuy, op.Type)
	assert.Equal(t, "BTC_ETH", op.Pair)
	assert.Equal(t, 1, op.Step)
	assert.Equal(t, 0.025, op.Price)
	assert.Equal(t, exchange.OrderTypeFillOrKill, op.OrderType)
	assert.InDelta(t, 0.004995, op.Profit, 1e-12)
	assert.Zero(t, op.Amount)
}

func TestCandidates_BuyTakesPriorityOverSell(t *testing.T) {
	snapshot := exchange.Snapshot{
		Ticker:   map[string]exchange.Ticker{"BTC_ETH": {"lowestAsk": 0.025, "highestBid": 0.024}},
		Balances: map[string]float64{"ETH": 10},
		TradeHistory: map[string][]exchange.TradeRecord{
			"BTC_ETH": {{Type: exchange.SideBuy, Amount: 10, Total: 0.1, GlobalTradeID: 1}},
		},
	}
	prediction := forecast.Prediction{"BTC_ETH": {1: 0.03}}

	plans := NewBuilder(baseSettings("BTC_ETH"), prediction, snapshot, nil, nil).Candidates()
	require.Len(t, plans[0], 1)
	assert.Equal(t, OpBuy, plans[0][0].Type)
}

func sellSnapshot() exchange.Snapshot {
	return exchange.Snapshot{
		Ticker:   map[string]exchange.Ticker{"BTC_ETH": {"lowestAsk": 0.03, "highestBid": 0.029}},
		Balances: map[string]float64{"ETH": 4},
		TradeHistory: map[string][]exchange.TradeRecord{
			"BTC_ETH": {
				{Type: exchange.SideBuy, Amount: 4, Total: 0.08, Fee: 0, GlobalTradeID: 7},
			},
		},
		Fees: exchange.FeeInfo{MakerFee: 0.1, TakerFee: 0.2},
	}
}

func TestCandidates_SellAtPredictedAndCurrentPrice(t *testing.T) {
	settings := baseSettings("BTC_ETH")
	settings.Steps = 2
	// predicted below the ask so no buy; bought_for = 0.02
	prediction := forecast.Prediction{"BTC_ETH": {1: 0.028, 2: 0.027}}

	plans := NewBuilder(settings, prediction, sellSnapshot(), nil, nil).Candidates()
	require.Len(t, plans, 2)

	require.Len(t, plans[0], 2)
	standing := plans[0][0]
	assert.Equal(t, OpSell, standing.Type)
	assert.Equal(t, 0.028, standing.Price)
	assert.Equal(t, exchange.OrderTypeStanding, standing.OrderType)
	assert.InDelta(t, 0.008*(1-0.001), standing.Profit, 1e-12)

	immediate := plans[0][1]
	assert.Equal(t, OpSell, immediate.Type)
	assert.Equal(t, 0.029, immediate.Price)
	assert.Equal(t, exchange.OrderTypeFillOrKill, immediate.OrderType)

	// step 2 only evaluates the predicted price
	require.Len(t, plans[1], 1)
	assert.Equal(t, 0.027, plans[1][0].Price)
	assert.Equal(t, 2, plans[1][0].Step)
}

func TestCandidates_NoSellWithoutBalanceOrHistory(t *testing.T) {
	prediction := forecast.Prediction{"BTC_ETH": {1: 0.028}}

	noBalance := sellSnapshot()
	noBalance.Balances = map[string]float64{}
	plans := NewBuilder(baseSettings("BTC_ETH"), prediction, noBalance, nil, nil).Candidates()
	assert.Empty(t, plans[0])

	noHistory := sellSnapshot()
	noHistory.TradeHistory = nil
	plans = NewBuilder(baseSettings("BTC_ETH"), prediction, noHistory, nil, nil).Candidates()
	assert.Empty(t, plans[0])
}

func TestCandidates_InsufficientHistoryExcludesSell(t *testing.T) {
	snapshot := sellSnapshot()
	snapshot.TradeHistory["BTC_ETH"] = []exchange.TradeRecord{
		{Type: exchange.SideSell, Amount: 1, Total: 0.03, GlobalTradeID: 9},
	}
	settings := baseSettings("BTC_ETH")
	settings.Steps = 3
	prediction := forecast.Prediction{"BTC_ETH": {1: 0.028, 2: 0.028, 3: 0.028}}

	calls := 0
	costBasis := CostBasisFunc(func(h []exchange.TradeRecord, balance float64) (float64, error) {
		calls++
		return position.AverageCost(h, balance)
	})

	plans := NewBuilder(settings, prediction, snapshot, costBasis, nil).Candidates()
	for _, plan := range plans {
		assert.Empty(t, plan)
	}
	assert.Equal(t, 1, calls, "cost basis should be computed once per pair")
}

func TestCandidates_ThresholdFilters(t *testing.T) {
	snapshot := exchange.Snapshot{
		Ticker: map[string]exchange.Ticker{"BTC_ETH": {"lowestAsk": 0.025, "highestBid": 0.024}},
		Fees:   exchange.FeeInfo{TakerFee: 0.1},
	}
	settings := baseSettings("BTC_ETH")
	settings.Threshold = 0.01
	prediction := forecast.Prediction{"BTC_ETH": {1: 0.03}}

	plans := NewBuilder(settings, prediction, snapshot, nil, nil).Candidates()
	assert.Empty(t, plans[0])
}

func TestCandidates_MissingDataSkipsPair(t *testing.T) {
	snapshot := exchange.Snapshot{
		Ticker: map[string]exchange.Ticker{
			"BTC_ETH": {"lowestAsk": 0.025},
			"BTC_LTC": {"last": 0.01},
		},
	}
	prediction := forecast.Prediction{
		"BTC_ETH": {1: 0.03},
		"BTC_LTC": {1: 0.5},
		"BTC_XMR": {1: 1},
	}

	plans := NewBuilder(baseSettings("BTC_ZEC", "BTC_XMR", "BTC_LTC", "BTC_ETH"), prediction, snapshot, nil, nil).Candidates()
	require.Len(t, plans[0], 1)
	assert.Equal(t, "BTC_ETH", plans[0][0].Pair)
}

func TestCandidates_FollowsPairOrder(t *testing.T) {
	snapshot := exchange.Snapshot{
		Ticker: map[string]exchange.Ticker{
			"BTC_ETH": {"lowestAsk": 1},
			"BTC_ZEC": {"lowestAsk": 1},
		},
	}
	prediction := forecast.Prediction{"BTC_ETH": {1: 2}, "BTC_ZEC": {1: 2}}

	plans := NewBuilder(baseSettings("BTC_ZEC", "BTC_ETH"), prediction, snapshot, nil, nil).Candidates()
	require.Len(t, plans[0], 2)
	assert.Equal(t, "BTC_ZEC", plans[0][0].Pair)
	assert.Equal(t, "BTC_ETH", plans[0][1].Pair)
}

func TestCostBasisFunc(t *testing.T) {
	wantErr := errors.New("boom")
	f := CostBasisFunc(func([]exchange.TradeRecord, float64) (float64, error) { return math.Pi, wantErr })
	v, err := f.AverageCost(nil, 1)
	assert.Equal(t, math.Pi, v)
	assert.ErrorIs(t, err, wantErr)
}
