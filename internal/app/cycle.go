package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cycle-trader/internal/exchange"
	"cycle-trader/internal/execution"
	"cycle-trader/internal/forecast"
	logpkg "cycle-trader/internal/log"
	"cycle-trader/internal/metrics"
	"cycle-trader/internal/params"
	"cycle-trader/internal/planner"
	"cycle-trader/internal/risk"
	"cycle-trader/internal/trader"
)

// ErrCycleAlreadyRunning 表示已有周期在执行。
var ErrCycleAlreadyRunning = errors.New("app: 已有交易周期在运行")

// 周期结束状态。
const (
	outcomeInvalidParams  = "invalid_params"
	outcomeForecastFailed = "forecast_failed"
	outcomeNoPrediction   = "no_prediction"
	outcomeReadFailed     = "read_failed"
	outcomeEmptyPlan      = "empty_plan"
	outcomeTraded         = "traded"
	outcomeCanceled       = "canceled"
)

type seriesSource interface {
	HistoricalSeries(ctx context.Context, pair string, start, end time.Time, period int, field string) ([]float64, error)
}

type journal interface {
	RecordCycleStarted(ctx context.Context, cycleID string, p params.Parameters)
	RecordForecast(ctx context.Context, cycleID string, p params.Parameters, prediction forecast.Prediction, excluded map[string]string)
	RecordPlan(ctx context.Context, cycleID string, plan planner.Plan, retrievedAt time.Time)
	RecordExecution(ctx context.Context, cycleID string, results []execution.Result)
	RecordCycleFinished(ctx context.Context, cycleID, outcome string, duration time.Duration, results []execution.Result)
	RecordError(ctx context.Context, cycleID, msg string, err error, ctxMap map[string]interface{})
}

type nopJournal struct{}

func (nopJournal) RecordCycleStarted(context.Context, string, params.Parameters) {}

func (nopJournal) RecordForecast(context.Context, string, params.Parameters, forecast.Prediction, map[string]string) {}

func (nopJournal) RecordPlan(context.Context, string, planner.Plan, time.Time) {}

func (nopJournal) RecordExecution(context.Context, string, []execution.Result) {}

func (nopJournal) RecordCycleFinished(context.Context, string, string, time.Duration, []execution.Result) {}

func (nopJournal) RecordError(context.Context, string, string, error, map[string]interface{}) {}

// CycleDeps 为交易周期的外部协作方。
type CycleDeps struct {
	Market   seriesSource
	Account  exchange.AccountReader
	Forecast forecast.Provider
	Executor execution.OrderExecutor
	// Journal 与 Metrics 可为空。
	Journal journal
	Metrics *metrics.Collector
	// Defaults 为周期参数默认值，调用参数按顶层键覆盖。
	Defaults    map[string]any
	MinNotional float64
	Timeout     time.Duration
	Now         func() time.Time
}

// Cycle 串行执行交易周期：拉取数据、预测、生成计划并下单。
type Cycle struct {
	deps   CycleDeps
	mu     sync.Mutex
	logger *zap.Logger
}

// NewCycle 创建周期编排器。
func NewCycle(deps CycleDeps, logger *zap.Logger) (*Cycle, error) {
	if deps.Market == nil || deps.Account == nil || deps.Forecast == nil || deps.Executor == nil {
		return nil, errors.New("app: 周期依赖不完整")
	}
	if deps.Journal == nil {
		deps.Journal = nopJournal{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cycle{deps: deps, logger: logger}, nil
}

// StartCycleIteration 执行一次完整的交易周期，同一时刻只允许一个周期运行。
func (c *Cycle) StartCycleIteration(ctx context.Context, raw map[string]any) (results []execution.Result, err error) {
	if !c.mu.TryLock() {
		c.logger.Warn("交易周期仍在运行，拒绝新的请求")
		return nil, ErrCycleAlreadyRunning
	}
	defer c.mu.Unlock()

	cycleID := uuid.NewString()
	logger := logpkg.ForCycle(c.logger, cycleID)
	journalCtx := context.WithoutCancel(ctx)
	started := c.deps.Now()
	outcome := outcomeTraded

	c.deps.Metrics.CycleStarted()
	defer func() {
		elapsed := c.deps.Now().Sub(started)
		c.deps.Metrics.CycleFinished(outcome, elapsed)
		c.deps.Journal.RecordCycleFinished(journalCtx, cycleID, outcome, elapsed, results)
		logger.Info("交易周期结束",
			zap.String("outcome", outcome),
			zap.Duration("elapsed", elapsed),
			zap.Int("results", len(results)),
		)
	}()

	p, err := params.Parse(params.Merge(c.deps.Defaults, raw))
	if err != nil {
		outcome = outcomeInvalidParams
		logger.Error("周期参数非法", zap.Error(err))
		c.deps.Journal.RecordError(journalCtx, cycleID, "周期参数非法", err, nil)
		return nil, err
	}
	if !c.deps.Forecast.Supports(p.Algorithm) {
		outcome = outcomeInvalidParams
		err = &params.ConfigurationError{Err: fmt.Errorf("不支持的预测算法: %s", p.Algorithm)}
		logger.Error("周期参数非法", zap.Error(err))
		c.deps.Journal.RecordError(journalCtx, cycleID, "周期参数非法", err, nil)
		return nil, err
	}
	c.deps.Journal.RecordCycleStarted(journalCtx, cycleID, p)
	logger.Info("交易周期开始",
		zap.Strings("pairs", p.Pairs),
		zap.String("algorithm", p.Algorithm),
		zap.Int("steps", p.Steps),
		zap.Int("risk", risk.Clamp(p.Risk)),
	)

	if c.deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.deps.Timeout)
		defer cancel()
	}

	window := params.ResolveWindow(p.Window, started, logger)
	series, excluded, err := c.fetchSeries(ctx, p, window, logger)
	if err != nil {
		outcome = outcomeCanceled
		c.deps.Journal.RecordError(journalCtx, cycleID, "拉取历史数据失败", err, nil)
		return []execution.Result{}, err
	}
	if len(series) == 0 {
		outcome = outcomeForecastFailed
		failures := make(map[string]error, len(excluded))
		for pair, msg := range excluded {
			failures[pair] = errors.New(msg)
		}
		err = &forecast.Error{Algorithm: p.Algorithm, Failures: failures}
		c.deps.Metrics.ObserveExcluded(len(excluded))
		c.deps.Journal.RecordError(journalCtx, cycleID, "全部交易对历史数据不可用", err, nil)
		return []execution.Result{}, err
	}

	prediction, err := c.deps.Forecast.Predict(ctx, series, p.Steps, p.Hyperparameters, p.Algorithm)
	if err != nil {
		var cfgErr *params.ConfigurationError
		if errors.As(err, &cfgErr) {
			outcome = outcomeInvalidParams
		} else {
			outcome = outcomeForecastFailed
		}
		logger.Error("预测失败", zap.Error(err))
		c.deps.Journal.RecordError(journalCtx, cycleID, "预测失败", err, nil)
		return []execution.Result{}, err
	}
	for pair := range series {
		if _, ok := prediction[pair]; !ok {
			excluded[pair] = "预测失败"
		}
	}
	c.deps.Metrics.ObserveExcluded(len(excluded))
	c.deps.Journal.RecordForecast(journalCtx, cycleID, p, prediction, excluded)

	if len(prediction) == 0 {
		outcome = outcomeNoPrediction
		logger.Info("预测结果为空，本周期不交易")
		return []execution.Result{}, nil
	}

	tr, err := trader.New(ctx, c.deps.Account, c.deps.Executor, p, prediction, trader.Options{
		DefaultMinNotional: c.deps.MinNotional,
	}, logger)
	if err != nil {
		outcome = outcomeReadFailed
		logger.Error("读取账户快照失败", zap.Error(err))
		c.deps.Journal.RecordError(journalCtx, cycleID, "读取账户快照失败", err, nil)
		return []execution.Result{}, err
	}

	plan := tr.PreparePlan()
	c.deps.Metrics.ObservePlan(len(plan))
	c.deps.Journal.RecordPlan(journalCtx, cycleID, plan, tr.Snapshot().RetrievedAt)
	if len(plan) == 0 {
		outcome = outcomeEmptyPlan
		logger.Info("计划为空，本周期不下单")
		return []execution.Result{}, nil
	}

	results = tr.Trade(ctx, plan)
	c.deps.Metrics.ObserveResults(results)
	c.deps.Journal.RecordExecution(journalCtx, cycleID, results)

	summary := execution.Summarize(results)
	logger.Info("计划执行完成",
		zap.Int("placed", summary.Placed),
		zap.Int("failed", summary.Failed),
		zap.Int("canceled", summary.Canceled),
		zap.Int("simulated", summary.Simulated),
	)
	return results, nil
}

// fetchSeries 并发拉取各交易对的历史序列，失败的交易对被剔除并记录原因。
func (c *Cycle) fetchSeries(ctx context.Context, p params.Parameters, window params.Range, logger *zap.Logger) (map[string][]float64, map[string]string, error) {
	var (
		mu       sync.Mutex
		series   = make(map[string][]float64, len(p.Pairs))
		excluded = make(map[string]string)
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, pair := range p.Pairs {
		g.Go(func() error {
			values, err := c.deps.Market.HistoricalSeries(gctx, pair, window.Start, window.End, p.Period, p.LearnOn)
			if gctx.Err() != nil {
				return gctx.Err()
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("拉取历史数据失败，已剔除交易对", zap.String("pair", pair), zap.Error(err))
				excluded[pair] = err.Error()
				return nil
			}
			if len(values) == 0 {
				logger.Warn("历史数据为空，已剔除交易对", zap.String("pair", pair))
				excluded[pair] = "历史数据为空"
				return nil
			}
			series[pair] = values
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("app: 拉取历史数据被中断: %w", err)
	}
	return series, excluded, nil
}
