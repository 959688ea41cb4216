package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"cycle-trader/internal/config"
)

// poloniexAPI 为客户端实际用到的 ccxt 方法子集，便于测试替换。
type poloniexAPI interface {
	LoadMarkets(params ...interface{}) (map[string]ccxt.MarketInterface, error)
	FetchTickers(options ...ccxt.FetchTickersOptions) (ccxt.Tickers, error)
	FetchBalance(params ...interface{}) (ccxt.Balances, error)
	FetchMyTrades(options ...ccxt.FetchMyTradesOptions) ([]ccxt.Trade, error)
	FetchOpenOrders(options ...ccxt.FetchOpenOrdersOptions) ([]ccxt.Order, error)
	FetchTradingFee(symbol string, options ...ccxt.FetchTradingFeeOptions) (ccxt.TradingFeeInterface, error)
	CreateLimitOrder(symbol string, side string, amount float64, price float64, options ...ccxt.CreateLimitOrderOptions) (ccxt.Order, error)
	CancelOrder(id string, options ...ccxt.CancelOrderOptions) (ccxt.Order, error)
	FetchOHLCV(symbol string, options ...ccxt.FetchOHLCVOptions) ([]ccxt.OHLCV, error)
}

var _ AccountReader = (*Client)(nil)

// Client 负责与交易所交互，并实现限速与重试机制。
type Client struct {
	cfg      config.ExchangeConfig
	logger   *zap.Logger
	exchange poloniexAPI
	limiter  *rate.Limiter

	marketsMu     sync.Mutex
	marketsLoaded bool
	markets       map[string]ccxt.MarketInterface
}

// NewClient 构造 Poloniex 现货客户端。
func NewClient(cfg config.ExchangeConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !strings.EqualFold(cfg.Name, "poloniex") {
		return nil, fmt.Errorf("exchange: 不支持的交易所 %q", cfg.Name)
	}

	userConfig := map[string]interface{}{
		"enableRateLimit": true,
		"options": map[string]interface{}{
			"adjustForTimeDifference": true,
			"defaultType":             "spot",
		},
	}

	if cfg.APIKey != "" {
		userConfig["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		userConfig["secret"] = cfg.APISecret
	}

	ex := ccxt.NewPoloniex(userConfig)
	if cfg.UseSandbox {
		ex.SetSandboxMode(true)
	}

	return newClientWithAPI(cfg, ex, logger), nil
}

func newClientWithAPI(cfg config.ExchangeConfig, api poloniexAPI, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	perSecond := cfg.RateLimit.PerSecond
	if perSecond <= 0 {
		perSecond = 6
	}
	burst := cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		cfg:      cfg,
		logger:   logger,
		exchange: api,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Ticker 获取给定交易对的行情，同时提供 Poloniex 与 ccxt 两套字段名。
func (c *Client) Ticker(ctx context.Context, pairs []string) (map[string]Ticker, error) {
	symbols := make([]string, 0, len(pairs))
	for _, id := range pairs {
		pair, err := ParsePair(id)
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, pair.Symbol())
	}

	var raw ccxt.Tickers
	err := c.callWithRetry(ctx, "fetch_tickers", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		var opts []ccxt.FetchTickersOptions
		if len(symbols) > 0 {
			opts = append(opts, ccxt.WithFetchTickersSymbols(symbols))
		}
		result, err := c.exchange.FetchTickers(opts...)
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	tickers := make(map[string]Ticker, len(raw.Tickers))
	for symbol, t := range raw.Tickers {
		pair, err := PairFromSymbol(symbol)
		if err != nil {
			c.logger.Debug("忽略无法识别的行情符号", zap.String("symbol", symbol))
			continue
		}
		tickers[pair.String()] = convertTicker(t)
	}
	return tickers, nil
}

// Balances 获取各币种可用余额。
func (c *Client) Balances(ctx context.Context) (map[string]float64, error) {
	var raw ccxt.Balances
	err := c.callWithRetry(ctx, "fetch_balance", func() error {
		result, err := c.exchange.FetchBalance()
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	balances := make(map[string]float64, len(raw.Free))
	for code, free := range raw.Free {
		if free == nil {
			continue
		}
		balances[strings.ToUpper(code)] = *free
	}
	return balances, nil
}

// TradeHistory 获取成交历史，按交易对分组。
func (c *Client) TradeHistory(ctx context.Context, scope Scope) (map[string][]TradeRecord, error) {
	since := time.Now().Add(-time.Duration(c.historyDays()) * 24 * time.Hour).UnixMilli()
	opts := []ccxt.FetchMyTradesOptions{ccxt.WithFetchMyTradesSince(since)}
	if id, ok := scope.Pair(); ok {
		pair, err := ParsePair(id)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ccxt.WithFetchMyTradesSymbol(pair.Symbol()))
	}

	var raw []ccxt.Trade
	err := c.callWithRetry(ctx, "fetch_my_trades", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		result, err := c.exchange.FetchMyTrades(opts...)
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	history := make(map[string][]TradeRecord)
	for _, t := range raw {
		pair, err := PairFromSymbol(derefString(t.Symbol))
		if err != nil {
			continue
		}
		record, ok := convertTrade(t, pair)
		if !ok {
			continue
		}
		history[pair.String()] = append(history[pair.String()], record)
	}
	return history, nil
}

// OpenOrders 获取未成交委托，按交易对分组。
func (c *Client) OpenOrders(ctx context.Context, scope Scope) (map[string][]OrderRecord, error) {
	var opts []ccxt.FetchOpenOrdersOptions
	if id, ok := scope.Pair(); ok {
		pair, err := ParsePair(id)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ccxt.WithFetchOpenOrdersSymbol(pair.Symbol()))
	}

	var raw []ccxt.Order
	err := c.callWithRetry(ctx, "fetch_open_orders", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		result, err := c.exchange.FetchOpenOrders(opts...)
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	orders := make(map[string][]OrderRecord)
	for _, o := range raw {
		pair, err := PairFromSymbol(derefString(o.Symbol))
		if err != nil {
			continue
		}
		side, ok := ParseSide(derefString(o.Side))
		if !ok {
			continue
		}
		amount := derefFloat(o.Remaining)
		if amount == 0 {
			amount = derefFloat(o.Amount)
		}
		orders[pair.String()] = append(orders[pair.String()], OrderRecord{
			OrderNumber: derefString(o.Id),
			Type:        side,
			Rate:        derefFloat(o.Price),
			Amount:      amount,
		})
	}
	return orders, nil
}

// FeeInfo 获取账户费率，ccxt 返回小数形式，这里换算为百分比。
func (c *Client) FeeInfo(ctx context.Context, pair string) (FeeInfo, error) {
	p, err := ParsePair(pair)
	if err != nil {
		return FeeInfo{}, err
	}

	var raw ccxt.TradingFeeInterface
	err = c.callWithRetry(ctx, "fetch_trading_fee", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		result, err := c.exchange.FetchTradingFee(p.Symbol())
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return FeeInfo{}, err
	}

	return FeeInfo{
		MakerFee: derefFloat(raw.Maker) * 100,
		TakerFee: derefFloat(raw.Taker) * 100,
	}, nil
}

// MinNotional 返回交易对的最小下单金额，未知时返回 0。
func (c *Client) MinNotional(ctx context.Context, pair string) (float64, error) {
	p, err := ParsePair(pair)
	if err != nil {
		return 0, err
	}
	if err := c.ensureMarketsLoaded(ctx); err != nil {
		return 0, err
	}

	c.marketsMu.Lock()
	market, ok := c.markets[p.Symbol()]
	c.marketsMu.Unlock()
	if !ok {
		return 0, nil
	}
	return derefFloat(market.Limits.Cost.Min), nil
}

// PlaceOrder 按委托类型提交限价单。
func (c *Client) PlaceOrder(ctx context.Context, side Side, pair string, rate, amount float64, orderType OrderType) (OrderResult, error) {
	p, err := ParsePair(pair)
	if err != nil {
		return OrderResult{}, err
	}
	if !orderType.Valid() {
		return OrderResult{}, fmt.Errorf("exchange: 不支持的委托类型 %q", orderType)
	}

	params := map[string]interface{}{
		"timeInForce": orderType.TimeInForce(),
	}

	var order ccxt.Order
	// 下单不做自动重试，避免网络抖动导致重复委托
	err = c.call(ctx, "create_limit_order", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		result, err := c.exchange.CreateLimitOrder(
			p.Symbol(),
			string(side),
			amount,
			rate,
			ccxt.WithCreateLimitOrderParams(params),
		)
		if err != nil {
			return err
		}
		order = result
		return nil
	})
	if err != nil {
		return OrderResult{}, err
	}

	c.logger.Info("委托已提交",
		zap.String("pair", pair),
		zap.String("side", string(side)),
		zap.Float64("rate", rate),
		zap.Float64("amount", amount),
		zap.String("order_type", string(orderType)),
		zap.String("order_number", derefString(order.Id)),
	)

	return OrderResult{
		OrderNumber: derefString(order.Id),
		Status:      derefString(order.Status),
		Filled:      derefFloat(order.Filled),
	}, nil
}

// CancelOrder 撤销指定委托。
func (c *Client) CancelOrder(ctx context.Context, orderNumber, pair string) error {
	p, err := ParsePair(pair)
	if err != nil {
		return err
	}
	return c.callWithRetry(ctx, "cancel_order", func() error {
		_, err := c.exchange.CancelOrder(orderNumber, ccxt.WithCancelOrderSymbol(p.Symbol()))
		return err
	})
}

// Candles 获取 [since, until) 区间内的K线数据。
func (c *Client) Candles(ctx context.Context, pair string, timeframe string, since, until time.Time) ([]Candle, error) {
	p, err := ParsePair(pair)
	if err != nil {
		return nil, err
	}

	var raw []ccxt.OHLCV
	err = c.callWithRetry(ctx, fmt.Sprintf("fetch_ohlcv_%s", timeframe), func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		result, err := c.exchange.FetchOHLCV(
			p.Symbol(),
			ccxt.WithFetchOHLCVTimeframe(timeframe),
			ccxt.WithFetchOHLCVSince(since.UnixMilli()),
		)
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	candles := make([]Candle, 0, len(raw))
	for _, item := range raw {
		ts := time.UnixMilli(item.Timestamp).UTC()
		if ts.Before(since) || !ts.Before(until) {
			continue
		}
		candles = append(candles, Candle{
			Timestamp: ts,
			Open:      item.Open,
			High:      item.High,
			Low:       item.Low,
			Close:     item.Close,
			Volume:    item.Volume,
		})
	}
	return candles, nil
}

func (c *Client) historyDays() int {
	if c.cfg.HistoryDays <= 0 {
		return 28
	}
	return c.cfg.HistoryDays
}

func (c *Client) ensureMarketsLoaded(ctx context.Context) error {
	c.marketsMu.Lock()
	defer c.marketsMu.Unlock()

	if c.marketsLoaded {
		return nil
	}

	loadErr := c.callWithRetry(ctx, "load_markets", func() error {
		markets, err := c.exchange.LoadMarkets()
		if err != nil {
			return err
		}
		c.markets = markets
		return nil
	})
	if loadErr != nil {
		return loadErr
	}

	c.marketsLoaded = true
	c.logger.Info("已完成市场元数据加载", zap.Int("markets", len(c.markets)))
	return nil
}

// call 只执行一次，不重试。
func (c *Client) call(ctx context.Context, operation string, fn func() error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	err := fn()
	if err == nil {
		return nil
	}
	normalizedErr, _ := c.classifyError(err)
	c.logger.Error("交易所调用失败",
		zap.String("operation", operation),
		zap.Error(normalizedErr),
	)
	return normalizedErr
}

func (c *Client) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	delay := c.cfg.Retry.MinDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := c.cfg.Retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	maxAttempts := c.cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		attempt++
		start := time.Now()
		err := fn()
		duration := time.Since(start)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("交易所调用重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", duration),
				)
			}
			return nil
		}

		normalizedErr, retry := c.classifyError(err)

		if errors.Is(normalizedErr, ErrMaintenance) {
			c.logger.Warn("交易所维护中",
				zap.String("operation", operation),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		if !retry || attempt >= maxAttempts {
			c.logger.Error("交易所调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", duration),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		wait := delay
		if wait > maxDelay {
			wait = maxDelay
		}

		c.logger.Warn("交易所调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(normalizedErr),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func (c *Client) classifyError(err error) (error, bool) {
	if err == nil {
		return nil, false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		if ccxtErr.Type == ccxt.OnMaintenanceErrType {
			message := strings.TrimSpace(ccxtErr.Message)
			if message == "" {
				message = "exchange under maintenance"
			}
			return fmt.Errorf("%w: %s", ErrMaintenance, message), false
		}
		return err, IsRetryable(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return err, true
	}

	return err, false
}
