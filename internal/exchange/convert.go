package exchange

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	ccxt "github.com/ccxt/ccxt/go/v4"
)

func convertTicker(t ccxt.Ticker) Ticker {
	out := make(Ticker, 16)
	set := func(v *float64, names ...string) {
		if v == nil {
			return
		}
		for _, name := range names {
			out[name] = *v
		}
	}

	set(t.Last, "last")
	set(t.Ask, "ask", "lowestAsk")
	set(t.Bid, "bid", "highestBid")
	set(t.High, "high", "high24hr")
	set(t.Low, "low", "low24hr")
	set(t.BaseVolume, "baseVolume")
	set(t.QuoteVolume, "quoteVolume")
	set(t.Vwap, "vwap")
	set(t.Average, "average")
	if t.Percentage != nil {
		out["percentage"] = *t.Percentage
		out["percentChange"] = *t.Percentage / 100
	}
	return out
}

// convertTrade 将 ccxt 成交转换为内部记录，费率统一为百分比。
func convertTrade(t ccxt.Trade, pair Pair) (TradeRecord, bool) {
	side, ok := ParseSide(derefString(t.Side))
	if !ok {
		return TradeRecord{}, false
	}
	amount := derefFloat(t.Amount)
	rate := derefFloat(t.Price)
	total := derefFloat(t.Cost)
	if total == 0 {
		total = amount * rate
	}

	return TradeRecord{
		Type:          side,
		Amount:        amount,
		Total:         total,
		Fee:           feePercent(t.Info, pair, amount, total),
		Rate:          rate,
		GlobalTradeID: tradeID(t),
	}, true
}

// feePercent 优先读取旧版接口的 fee 小数字段，其次按 feeAmount 与计价币推算。
func feePercent(info map[string]interface{}, pair Pair, amount, total float64) float64 {
	if info == nil {
		return 0
	}
	if _, ok := info["fee"]; ok {
		return parseNumeric(info["fee"]) * 100
	}
	feeAmount := parseNumeric(info["feeAmount"])
	if feeAmount == 0 {
		return 0
	}
	feeCurrency := strings.ToUpper(fmt.Sprint(info["feeCurrency"]))
	if feeCurrency == pair.Secondary && amount > 0 {
		return feeAmount / amount * 100
	}
	if total > 0 {
		return feeAmount / total * 100
	}
	return 0
}

func tradeID(t ccxt.Trade) int64 {
	for _, key := range []string{"globalTradeID", "id", "pageId"} {
		if v := int64(parseNumeric(t.Info[key])); v > 0 {
			return v
		}
	}
	if id, err := strconv.ParseInt(derefString(t.Id), 10, 64); err == nil {
		return id
	}
	if t.Timestamp != nil {
		return *t.Timestamp
	}
	return 0
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func parseNumeric(value interface{}) float64 {
	switch v := value.(type) {
	case nil:
		return 0
	case float64:
		return v
	case *float64:
		if v != nil {
			return *v
		}
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case uint64:
		return float64(v)
	case uint32:
		return float64(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return 0
}
