package planner

import (
	"sort"

	"github.com/shopspring/decimal"

	"cycle-trader/internal/exchange"
)

type groupKey struct {
	pair string
	typ  OpType
}

// RemoveDuplicates 合并同一交易对、同一方向的操作：数量求和，买入取最低价，卖出取最高价。
// 结果与输入顺序无关，按收益降序、交易对、方向排列。
func RemoveDuplicates(plan Plan) Plan {
	if len(plan) == 0 {
		return Plan{}
	}

	groups := make(map[groupKey][]Operation, len(plan))
	for _, op := range plan {
		key := groupKey{pair: op.Pair, typ: op.Type}
		groups[key] = append(groups[key], op)
	}

	out := make(Plan, 0, len(groups))
	for _, ops := range groups {
		out = append(out, merge(ops))
	}

	sortPlan(out)
	return out
}

func merge(ops []Operation) Operation {
	merged := ops[0]
	amount := decimal.Zero
	orderTypes := make(map[exchange.OrderType]struct{}, 2)

	for i, op := range ops {
		if op.Amount > 0 {
			amount = amount.Add(decimal.NewFromFloat(op.Amount))
		}
		if op.Profit > merged.Profit {
			merged.Profit = op.Profit
		}
		if op.Step < merged.Step {
			merged.Step = op.Step
		}
		if i == 0 {
			continue
		}
		if tighter(op.Type, op.Price, merged.Price) {
			merged.Price = op.Price
		}
	}

	for _, op := range ops {
		if op.Price == merged.Price {
			orderTypes[op.OrderType] = struct{}{}
		}
	}
	merged.OrderType = exchange.OrderTypeStanding
	if len(orderTypes) == 1 {
		for t := range orderTypes {
			merged.OrderType = t
		}
	}

	merged.Amount = amount.InexactFloat64()
	return merged
}

// tighter 判断 candidate 是否比 current 更保守。
func tighter(typ OpType, candidate, current float64) bool {
	if typ == OpBuy {
		return candidate < current
	}
	return candidate > current
}

func sortPlan(plan Plan) {
	sort.SliceStable(plan, func(i, j int) bool {
		if plan[i].Profit != plan[j].Profit {
			return plan[i].Profit > plan[j].Profit
		}
		if plan[i].Pair != plan[j].Pair {
			return plan[i].Pair < plan[j].Pair
		}
		return plan[i].Type < plan[j].Type
	})
}
