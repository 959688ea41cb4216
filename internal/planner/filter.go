package planner

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cycle-trader/internal/exchange"
)

const amountPrecision = 8

// Limits 为计划定量与过滤所需的约束。
type Limits struct {
	Budget   float64
	TopN     int
	Balances map[string]float64
	// MinNotional 为交易所给出的每个交易对最小下单金额。
	MinNotional        map[string]float64
	DefaultMinNotional float64
}

func (l Limits) minNotional(pair string) decimal.Decimal {
	if v, ok := l.MinNotional[pair]; ok && v > 0 {
		return decimal.NewFromFloat(v)
	}
	return decimal.NewFromFloat(l.DefaultMinNotional)
}

// FilterByRestrictions 为未定量的操作按预算均分数量，按可用余额截断，并丢弃低于最小下单金额的操作。
// 余额在计划内按顺序扣减。
func FilterByRestrictions(plan Plan, limits Limits, logger *zap.Logger) Plan {
	if logger == nil {
		logger = zap.NewNop()
	}

	available := make(map[string]decimal.Decimal, len(limits.Balances))
	for currency, v := range limits.Balances {
		available[currency] = decimal.NewFromFloat(v)
	}
	topN := limits.TopN
	if topN < 1 {
		topN = 1
	}
	budget := decimal.NewFromFloat(limits.Budget)

	out := make(Plan, 0, len(plan))
	for _, op := range plan {
		pair, err := exchange.ParsePair(op.Pair)
		if err != nil || op.Price <= 0 {
			logger.Warn("操作无效，丢弃", zap.Stringer("operation", op))
			continue
		}
		price := decimal.NewFromFloat(op.Price)

		amount := decimal.NewFromFloat(op.Amount)
		if op.Amount <= 0 {
			amount = budget.Div(price).Div(decimal.NewFromInt(int64(topN))).Round(amountPrecision)
		}

		var currency string
		var maxAmount decimal.Decimal
		switch op.Type {
		case OpSell:
			currency = pair.Secondary
			maxAmount = available[currency]
		default:
			currency = pair.Main
			maxAmount = available[currency].Div(price).Truncate(amountPrecision)
		}
		if amount.GreaterThan(maxAmount) {
			logger.Debug("数量超过可用余额，已截断",
				zap.String("pair", op.Pair),
				zap.String("currency", currency),
				zap.String("requested", amount.String()),
				zap.String("available", maxAmount.String()),
			)
			amount = maxAmount
		}

		if !amount.IsPositive() {
			logger.Info("可用数量为零，丢弃操作", zap.Stringer("operation", op))
			continue
		}

		notional := amount.Mul(price)
		minimum := limits.minNotional(op.Pair)
		if notional.LessThan(minimum) {
			logger.Info("下单金额低于交易所最小值，丢弃操作",
				zap.Stringer("operation", op),
				zap.String("total", notional.Round(amountPrecision).String()),
				zap.String("min_notional", minimum.String()),
			)
			continue
		}

		if op.Type == OpSell {
			available[currency] = available[currency].Sub(amount)
		} else {
			available[currency] = available[currency].Sub(notional)
		}

		sized := op
		sized.Amount = amount.InexactFloat64()
		out = append(out, sized)
	}

	return out
}

// Total 返回保留 8 位小数的下单金额。
func Total(op Operation) float64 {
	return decimal.NewFromFloat(op.Amount).Mul(decimal.NewFromFloat(op.Price)).Round(amountPrecision).InexactFloat64()
}
