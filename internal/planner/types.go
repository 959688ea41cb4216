package planner

import (
	"fmt"

	"cycle-trader/internal/exchange"
)

// OpType 为操作方向。
type OpType string

const (
	OpBuy  OpType = "BUY"
	OpSell OpType = "SELL"
)

// Side 返回交易所下单方向。
func (t OpType) Side() exchange.Side {
	if t == OpBuy {
		return exchange.SideBuy
	}
	return exchange.SideSell
}

// Operation 为计划中的单个买卖操作，Amount 为 0 表示尚未定量。
type Operation struct {
	Type      OpType             `json:"op_type"`
	Pair      string             `json:"pair"`
	Profit    float64            `json:"profit"`
	Step      int                `json:"step"`
	Price     float64            `json:"price"`
	Amount    float64            `json:"amount"`
	OrderType exchange.OrderType `json:"order_type"`
}

func (o Operation) String() string {
	return fmt.Sprintf("%s %s step=%d price=%.8f amount=%.8f profit=%.8f %s",
		o.Type, o.Pair, o.Step, o.Price, o.Amount, o.Profit, o.OrderType)
}

// Plan 为有序的操作序列，各阶段都返回新的切片。
type Plan []Operation

// Clone 返回计划的副本。
func (p Plan) Clone() Plan {
	if p == nil {
		return nil
	}
	out := make(Plan, len(p))
	copy(out, p)
	return out
}
