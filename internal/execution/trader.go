package execution

import (
	"context"

	"cycle-trader/internal/exchange"
	"cycle-trader/internal/planner"
)

// OrderExecutor 抽象执行器接口，方便切换真实或模拟下单。
type OrderExecutor interface {
	Trade(ctx context.Context, plan planner.Plan, opts Options) []Result
}

// Options 控制单次执行行为。
type Options struct {
	// Reopen 为 true 时先撤销同交易对同方向的挂单再下单。
	Reopen     bool
	OpenOrders map[string][]exchange.OrderRecord
}

// cancelable 返回下单前需要撤销的挂单。
func (o Options) cancelable(op planner.Operation) []exchange.OrderRecord {
	if !o.Reopen {
		return nil
	}
	side := op.Type.Side()
	var out []exchange.OrderRecord
	for _, order := range o.OpenOrders[op.Pair] {
		if order.Type == side {
			out = append(out, order)
		}
	}
	return out
}
