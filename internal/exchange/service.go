package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type candleSource interface {
	Candles(ctx context.Context, pair string, timeframe string, since, until time.Time) ([]Candle, error)
}

// MarketDataService 提供按字段抽取的历史序列。
type MarketDataService struct {
	source candleSource
	logger *zap.Logger
}

// NewMarketDataService 创建市场数据服务。
func NewMarketDataService(source candleSource, logger *zap.Logger) *MarketDataService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarketDataService{
		source: source,
		logger: logger,
	}
}

// HistoricalSeries 拉取 [start, end) 区间内按 period 采样的 field 序列，按时间升序。
func (s *MarketDataService) HistoricalSeries(ctx context.Context, pair string, start, end time.Time, period int, field string) ([]float64, error) {
	timeframe, err := TimeframeForPeriod(period)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, fmt.Errorf("exchange: 时间窗口非法 start=%s end=%s", start, end)
	}

	candles, err := s.source.Candles(ctx, pair, timeframe, start, end)
	if err != nil {
		return nil, fmt.Errorf("exchange: 获取 %s K线失败: %w", pair, err)
	}

	series := make([]float64, 0, len(candles))
	for _, candle := range candles {
		v, err := candle.Field(field)
		if err != nil {
			return nil, err
		}
		series = append(series, v)
	}

	s.logger.Debug("历史序列获取完成",
		zap.String("pair", pair),
		zap.String("timeframe", timeframe),
		zap.String("field", field),
		zap.Int("points", len(series)),
	)
	return series, nil
}

// AccountReader 为构建账户快照所需的只读交易所接口。
type AccountReader interface {
	Ticker(ctx context.Context, pairs []string) (map[string]Ticker, error)
	Balances(ctx context.Context) (map[string]float64, error)
	TradeHistory(ctx context.Context, scope Scope) (map[string][]TradeRecord, error)
	OpenOrders(ctx context.Context, scope Scope) (map[string][]OrderRecord, error)
	FeeInfo(ctx context.Context, pair string) (FeeInfo, error)
	MinNotional(ctx context.Context, pair string) (float64, error)
}

// ReadSnapshot 并行读取账户快照，任一读取失败即返回 *ReadError。
func ReadSnapshot(ctx context.Context, reader AccountReader, pairs []string, logger *zap.Logger) (Snapshot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(pairs) == 0 {
		return Snapshot{}, &ReadError{Resource: "pairs", Err: fmt.Errorf("交易对列表为空")}
	}

	var (
		tickers  map[string]Ticker
		balances map[string]float64
		history  map[string][]TradeRecord
		orders   map[string][]OrderRecord
		fees     FeeInfo

		minMu       sync.Mutex
		minNotional = make(map[string]float64, len(pairs))
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		data, err := reader.Ticker(groupCtx, pairs)
		if err != nil {
			return &ReadError{Resource: "ticker", Err: err}
		}
		tickers = data
		return nil
	})

	group.Go(func() error {
		data, err := reader.Balances(groupCtx)
		if err != nil {
			return &ReadError{Resource: "balances", Err: err}
		}
		balances = data
		return nil
	})

	group.Go(func() error {
		data, err := reader.TradeHistory(groupCtx, ScopeAll())
		if err != nil {
			return &ReadError{Resource: "trade_history", Err: err}
		}
		history = data
		return nil
	})

	group.Go(func() error {
		data, err := reader.OpenOrders(groupCtx, ScopeAll())
		if err != nil {
			return &ReadError{Resource: "open_orders", Err: err}
		}
		orders = data
		return nil
	})

	group.Go(func() error {
		data, err := reader.FeeInfo(groupCtx, pairs[0])
		if err != nil {
			return &ReadError{Resource: "fee_info", Err: err}
		}
		fees = data
		return nil
	})

	for _, pair := range pairs {
		group.Go(func() error {
			v, err := reader.MinNotional(groupCtx, pair)
			if err != nil {
				return &ReadError{Resource: "min_notional", Err: err}
			}
			minMu.Lock()
			minNotional[pair] = v
			minMu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return Snapshot{}, err
	}

	snapshot := Snapshot{
		Ticker:       nonNilMap(tickers),
		Balances:     nonNilMap(balances),
		TradeHistory: nonNilMap(history),
		OpenOrders:   nonNilMap(orders),
		Fees:         fees,
		MinNotional:  minNotional,
		RetrievedAt:  time.Now().UTC(),
	}

	logger.Debug("账户快照获取完成",
		zap.Time("retrieved_at", snapshot.RetrievedAt),
		zap.Int("tickers", len(snapshot.Ticker)),
		zap.Int("balances", len(snapshot.Balances)),
		zap.Int("history_pairs", len(snapshot.TradeHistory)),
		zap.Int("open_order_pairs", len(snapshot.OpenOrders)),
		zap.Float64("maker_fee", snapshot.Fees.MakerFee),
		zap.Float64("taker_fee", snapshot.Fees.TakerFee),
	)

	return snapshot, nil
}

func nonNilMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return make(map[K]V)
	}
	return m
}
