package planner

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cycle-trader/internal/exchange"
)

func TestRemoveDuplicates_BuyKeepsLowestPriceAndSumsAmount(t *testing.T) {
	plan := Plan{
		{Type: OpBuy, Pair: "ETH_ZEC", Price: 0.012, Amount: 7, Profit: 0.2, Step: 2, OrderType: exchange.OrderTypeFillOrKill},
		{Type: OpBuy, Pair: "ETH_ZEC", Price: 0.01, Amount: 5, Profit: 0.1, Step: 3, OrderType: exchange.OrderTypeStanding},
	}

	got := RemoveDuplicates(plan)
	require.Len(t, got, 1)
	assert.Equal(t, 0.01, got[0].Price)
	assert.Equal(t, 12.0, got[0].Amount)
	assert.Equal(t, 0.2, got[0].Profit)
	assert.Equal(t, 2, got[0].Step)
	assert.Equal(t, exchange.OrderTypeStanding, got[0].OrderType)
}

func TestRemoveDuplicates_SellKeepsHighestPrice(t *testing.T) {
	plan := Plan{
		{Type: OpSell, Pair: "BTC_ETH", Price: 0.028, Profit: 0.008, Step: 1, OrderType: exchange.OrderTypeStanding},
		{Type: OpSell, Pair: "BTC_ETH", Price: 0.029, Profit: 0.009, Step: 1, OrderType: exchange.OrderTypeFillOrKill},
	}

	got := RemoveDuplicates(plan)
	require.Len(t, got, 1)
	assert.Equal(t, 0.029, got[0].Price)
	assert.Equal(t, exchange.OrderTypeFillOrKill, got[0].OrderType)
	assert.Zero(t, got[0].Amount, "unset amounts stay unset")
}

func TestRemoveDuplicates_PriceTieFallsBackToStanding(t *testing.T) {
	plan := Plan{
		{Type: OpSell, Pair: "BTC_ETH", Price: 0.03, Profit: 0.01, Step: 1, OrderType: exchange.OrderTypeFillOrKill},
		{Type: OpSell, Pair: "BTC_ETH", Price: 0.03, Profit: 0.01, Step: 1, OrderType: exchange.OrderTypeStanding},
	}
	got := RemoveDuplicates(plan)
	require.Len(t, got, 1)
	assert.Equal(t, exchange.OrderTypeStanding, got[0].OrderType)
}

func TestRemoveDuplicates_KeepsDirectionsApart(t *testing.T) {
	plan := Plan{
		{Type: OpBuy, Pair: "BTC_ETH", Price: 0.02, Profit: 0.1, Step: 2},
		{Type: OpSell, Pair: "BTC_ETH", Price: 0.03, Profit: 0.3, Step: 1},
	}
	got := RemoveDuplicates(plan)
	require.Len(t, got, 2)
	assert.Equal(t, OpSell, got[0].Type)
	assert.Equal(t, OpBuy, got[1].Type)
}

func TestRemoveDuplicates_OrderIndependent(t *testing.T) {
	plan := Plan{
		{Type: OpBuy, Pair: "ETH_ZEC", Price: 0.01, Amount: 5, Profit: 0.1, Step: 1},
		{Type: OpBuy, Pair: "ETH_ZEC", Price: 0.012, Amount: 7, Profit: 0.2, Step: 2},
		{Type: OpBuy, Pair: "ETH_ZEC", Price: 0.011, Amount: 0.1, Profit: 0.15, Step: 3},
		{Type: OpSell, Pair: "BTC_ETH", Price: 0.028, Amount: 0.2, Profit: 0.3, Step: 1},
		{Type: OpSell, Pair: "BTC_ETH", Price: 0.031, Amount: 0.7, Profit: 0.05, Step: 2},
		{Type: OpBuy, Pair: "BTC_LTC", Price: 0.005, Profit: 0.2, Step: 1},
	}
	want := RemoveDuplicates(plan)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := plan.Clone()
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, RemoveDuplicates(shuffled))
	}
}

func TestRemoveDuplicates_DoesNotMutateInput(t *testing.T) {
	plan := Plan{
		{Type: OpBuy, Pair: "ETH_ZEC", Price: 0.012, Amount: 7},
		{Type: OpBuy, Pair: "ETH_ZEC", Price: 0.01, Amount: 5},
	}
	_ = RemoveDuplicates(plan)
	assert.Equal(t, 0.012, plan[0].Price)
	assert.Equal(t, 7.0, plan[0].Amount)
}

func TestRemoveDuplicates_Empty(t *testing.T) {
	assert.Empty(t, RemoveDuplicates(nil))
}
