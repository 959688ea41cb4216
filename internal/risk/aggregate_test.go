package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cycle-trader/internal/planner"
)

func op(pair string, step int, profit float64) planner.Operation {
	return planner.Operation{Type: planner.OpBuy, Pair: pair, Step: step, Profit: profit, Price: 1}
}

func stepPlans() []planner.Plan {
	return []planner.Plan{
		{op("BTC_ETH", 1, 0.1), op("BTC_ZEC", 1, 0.3), op("BTC_LTC", 1, 0.2)},
		{op("BTC_ETH", 2, 0.5), op("BTC_ZEC", 2, 0.05)},
		{op("BTC_XMR", 3, 0.9)},
	}
}

func TestClamp(t *testing.T) {
	cases := map[int]int{-50: 0, -1: 0, 0: 0, 42: 42, 100: 100, 101: 100, 1000: 100}
	for in, want := range cases {
		assert.Equal(t, want, Clamp(in), "Clamp(%d)", in)
	}
}

func TestBelieveIn(t *testing.T) {
	assert.Equal(t, 1, BelieveIn(3, 10))
	assert.Equal(t, 2, BelieveIn(3, 50))   // 1.5 -> 2
	assert.Equal(t, 2, BelieveIn(5, 50))   // 2.5 -> 2
	assert.Equal(t, 3, BelieveIn(3, 100))
	assert.Equal(t, 3, BelieveIn(3, 250))
	assert.Equal(t, 1, BelieveIn(4, 1))
}

func TestAggregate_RiskZeroUsesFirstStepOnly(t *testing.T) {
	plans := stepPlans()
	got := Aggregate(plans, 3, 0, 5)

	require.Len(t, got, 3)
	assert.Equal(t, "BTC_ZEC", got[0].Pair)
	assert.Equal(t, "BTC_LTC", got[1].Pair)
	assert.Equal(t, "BTC_ETH", got[2].Pair)
	for _, o := range got {
		assert.Equal(t, 1, o.Step)
	}
}

func TestAggregate_SingleStepIgnoresRisk(t *testing.T) {
	got := Aggregate(stepPlans()[:1], 1, 100, 2)
	require.Len(t, got, 2)
	assert.Equal(t, 0.3, got[0].Profit)
	assert.Equal(t, 0.2, got[1].Profit)
}

func TestAggregate_BelievesSteps(t *testing.T) {
	// risk 50 over 3 steps -> steps 1..2
	got := Aggregate(stepPlans(), 3, 50, 3)
	require.Len(t, got, 3)
	assert.Equal(t, 0.5, got[0].Profit)
	assert.Equal(t, 0.3, got[1].Profit)
	assert.Equal(t, 0.2, got[2].Profit)

	// risk 100 -> includes step 3
	got = Aggregate(stepPlans(), 3, 100, 1)
	require.Len(t, got, 1)
	assert.Equal(t, "BTC_XMR", got[0].Pair)
}

func TestAggregate_NeverExceedsTopN(t *testing.T) {
	for _, risk := range []int{-10, 0, 25, 50, 75, 100, 200} {
		for topN := 1; topN <= 4; topN++ {
			got := Aggregate(stepPlans(), 3, risk, topN)
			assert.LessOrEqual(t, len(got), topN, "risk=%d topN=%d", risk, topN)
		}
	}
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	plans := stepPlans()
	_ = Aggregate(plans, 3, 100, 1)
	assert.Equal(t, "BTC_ETH", plans[0][0].Pair)
	assert.Len(t, plans[0], 3)
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(nil, 3, 50, 2))
	assert.Empty(t, Aggregate([]planner.Plan{{}, {}}, 2, 50, 2))
}
