package exchange

import (
	"fmt"
	"strings"
	"time"
)

// Pair 表示 MAIN_SECONDARY 形式的交易对，例如 ETH_BCH（主币 ETH，副币 BCH）。
type Pair struct {
	Main      string
	Secondary string
}

// ParsePair 解析交易对标识。
func ParsePair(id string) (Pair, error) {
	parts := strings.Split(strings.TrimSpace(id), "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, fmt.Errorf("exchange: 交易对格式非法: %q", id)
	}
	return Pair{
		Main:      strings.ToUpper(parts[0]),
		Secondary: strings.ToUpper(parts[1]),
	}, nil
}

// PairFromSymbol 将 ccxt 统一符号 SECONDARY/MAIN 转换为交易对。
func PairFromSymbol(symbol string) (Pair, error) {
	base, quote, ok := strings.Cut(symbol, "/")
	if !ok || base == "" || quote == "" {
		return Pair{}, fmt.Errorf("exchange: 交易符号格式非法: %q", symbol)
	}
	// 去掉衍生品的结算币后缀
	if idx := strings.Index(quote, ":"); idx >= 0 {
		quote = quote[:idx]
	}
	return Pair{Main: strings.ToUpper(quote), Secondary: strings.ToUpper(base)}, nil
}

func (p Pair) String() string {
	return p.Main + "_" + p.Secondary
}

// Symbol 返回 ccxt 统一符号。
func (p Pair) Symbol() string {
	return p.Secondary + "/" + p.Main
}

// Side 表示买卖方向。
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide 兼容大小写的方向解析。
func ParseSide(value string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "buy":
		return SideBuy, true
	case "sell":
		return SideSell, true
	default:
		return "", false
	}
}

// OrderType 描述委托的成交方式。
type OrderType string

const (
	// OrderTypeStanding 挂单，直到成交或被撤销。
	OrderTypeStanding OrderType = "standing"
	// OrderTypeFillOrKill 要么全部立即成交，要么撤销。
	OrderTypeFillOrKill OrderType = "fillOrKill"
	// OrderTypeImmediateOrCancel 立即成交能成交的部分，其余撤销。
	OrderTypeImmediateOrCancel OrderType = "immediateOrCancel"
)

// Valid 判断委托类型是否受支持。
func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeStanding, OrderTypeFillOrKill, OrderTypeImmediateOrCancel:
		return true
	default:
		return false
	}
}

// TimeInForce 返回交易所下单参数中的 timeInForce 取值。
func (t OrderType) TimeInForce() string {
	switch t {
	case OrderTypeFillOrKill:
		return "FOK"
	case OrderTypeImmediateOrCancel:
		return "IOC"
	default:
		return "GTC"
	}
}

// Ticker 为单个交易对的行情字段集合。
type Ticker map[string]float64

// Price 返回指定字段的价格。
func (t Ticker) Price(field string) (float64, bool) {
	v, ok := t[field]
	return v, ok
}

// TradeRecord 为一条成交记录，Fee 为百分比。
type TradeRecord struct {
	Type          Side    `json:"type"`
	Amount        float64 `json:"amount"`
	Total         float64 `json:"total"`
	Fee           float64 `json:"fee"`
	Rate          float64 `json:"rate"`
	GlobalTradeID int64   `json:"globalTradeID"`
}

// OrderRecord 为一条未成交委托。
type OrderRecord struct {
	OrderNumber string  `json:"orderNumber"`
	Type        Side    `json:"type"`
	Rate        float64 `json:"rate"`
	Amount      float64 `json:"amount"`
}

// FeeInfo 描述挂单/吃单费率（百分比）。
type FeeInfo struct {
	MakerFee float64 `json:"makerFee"`
	TakerFee float64 `json:"takerFee"`
}

// OrderResult 为下单返回。
type OrderResult struct {
	OrderNumber string  `json:"orderNumber"`
	Status      string  `json:"status,omitempty"`
	Filled      float64 `json:"filled,omitempty"`
}

// Scope 限定读取范围：全部交易对或单个交易对。
type Scope struct {
	pair string
}

// ScopeAll 返回覆盖全部交易对的范围。
func ScopeAll() Scope {
	return Scope{}
}

// ScopeOf 返回单个交易对的范围。
func ScopeOf(pair string) Scope {
	return Scope{pair: pair}
}

// All 判断是否为全部范围。
func (s Scope) All() bool {
	return s.pair == ""
}

// Pair 返回单个范围对应的交易对。
func (s Scope) Pair() (string, bool) {
	return s.pair, s.pair != ""
}

func (s Scope) String() string {
	if s.All() {
		return "all"
	}
	return s.pair
}

// Candle 代表单根K线。
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Snapshot 为一次周期内使用的账户与行情视图，只读取一次。
type Snapshot struct {
	Ticker       map[string]Ticker
	Balances     map[string]float64
	TradeHistory map[string][]TradeRecord
	OpenOrders   map[string][]OrderRecord
	Fees         FeeInfo
	MinNotional  map[string]float64
	RetrievedAt  time.Time
}

// Balance 返回某币种可用余额，缺失时为 0。
func (s Snapshot) Balance(currency string) float64 {
	return s.Balances[strings.ToUpper(currency)]
}
