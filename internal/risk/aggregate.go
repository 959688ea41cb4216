package risk

import (
	"math"
	"sort"

	"cycle-trader/internal/planner"
)

const (
	MinRisk = 0
	MaxRisk = 100
)

// Clamp 将风险百分比限制在 [0,100]。
func Clamp(risk int) int {
	if risk < MinRisk {
		return MinRisk
	}
	if risk > MaxRisk {
		return MaxRisk
	}
	return risk
}

// BelieveIn 返回在给定风险下被信任的未来步数，至少为 1。
func BelieveIn(steps, risk int) int {
	n := int(math.RoundToEven(float64(steps) * float64(Clamp(risk)) / 100))
	if n < 1 {
		n = 1
	}
	if n > steps {
		n = steps
	}
	return n
}

// TopN 按收益降序稳定排序并截断，返回新计划。
func TopN(plan planner.Plan, topN int) planner.Plan {
	out := plan.Clone()
	if out == nil {
		out = planner.Plan{}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Profit > out[j].Profit
	})
	if topN >= 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// Aggregate 将逐步候选计划合并为最终计划。
// steps > 1 且 risk > 0 时合并前 believe_in 步再截断，否则只采用第 1 步。
func Aggregate(stepPlans []planner.Plan, steps, risk, topN int) planner.Plan {
	if len(stepPlans) == 0 {
		return planner.Plan{}
	}
	risk = Clamp(risk)

	truncated := make([]planner.Plan, len(stepPlans))
	for i, plan := range stepPlans {
		truncated[i] = TopN(plan, topN)
	}

	if steps <= 1 || risk == 0 {
		return truncated[0]
	}

	believeIn := BelieveIn(steps, risk)
	if believeIn > len(truncated) {
		believeIn = len(truncated)
	}

	var combined planner.Plan
	for i := 0; i < believeIn; i++ {
		combined = append(combined, truncated[i]...)
	}
	return TopN(combined, topN)
}
