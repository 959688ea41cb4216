package position

import (
	"fmt"
	"sort"

	"cycle-trader/internal/exchange"
)

// InsufficientHistoryError 表示成交历史无法解释当前持仓。
type InsufficientHistoryError struct {
	Pair    string
	Balance float64
}

func (e *InsufficientHistoryError) Error() string {
	if e.Pair == "" {
		return fmt.Sprintf("position: 成交历史不足以解释持仓 %.8f", e.Balance)
	}
	return fmt.Sprintf("position: %s 成交历史不足以解释持仓 %.8f", e.Pair, e.Balance)
}

// Lot 为参与成本计算的一笔买入。
type Lot struct {
	GlobalTradeID int64
	Rate          float64
	Units         float64
}

// CostBasis 为持仓成本计算结果。
type CostBasis struct {
	AveragePrice float64
	Lots         []Lot
	// Covered 为成交历史能够解释的持仓数量。
	Covered float64
}

// AverageCost 从最近一笔买入开始倒序消耗持仓，返回被计入部分的成交量加权均价。
// 手续费按百分比加到单价上，输入切片不会被修改。
func AverageCost(history []exchange.TradeRecord, balance float64) (float64, error) {
	basis, err := Attribute(history, balance)
	if err != nil {
		return 0, err
	}
	return basis.AveragePrice, nil
}

// Attribute 返回完整的成本归因明细。
func Attribute(history []exchange.TradeRecord, balance float64) (CostBasis, error) {
	if balance <= 0 {
		return CostBasis{}, &InsufficientHistoryError{Balance: balance}
	}

	records := make([]exchange.TradeRecord, len(history))
	copy(records, history)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].GlobalTradeID > records[j].GlobalTradeID
	})

	var (
		lots      []Lot
		remaining = balance
		cost      float64
		units     float64
	)
	for _, record := range records {
		if record.Type != exchange.SideBuy || record.Amount <= 0 {
			continue
		}
		rate := record.Total * (1 + record.Fee/100) / record.Amount

		take := record.Amount
		if remaining <= record.Amount {
			take = remaining
		}
		lots = append(lots, Lot{GlobalTradeID: record.GlobalTradeID, Rate: rate, Units: take})
		cost += rate * take
		units += take
		remaining -= take

		if remaining <= 0 {
			break
		}
	}

	if units == 0 {
		return CostBasis{}, &InsufficientHistoryError{Balance: balance}
	}

	return CostBasis{
		AveragePrice: cost / units,
		Lots:         lots,
		Covered:      units,
	}, nil
}
