package trader

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cycle-trader/internal/exchange"
	"cycle-trader/internal/execution"
	"cycle-trader/internal/forecast"
	"cycle-trader/internal/params"
	"cycle-trader/internal/planner"
	"cycle-trader/internal/risk"
)

// Options 为 Trader 的可选依赖。
type Options struct {
	// DefaultMinNotional 为交易所未给出限制时的最小下单金额。
	DefaultMinNotional float64
	CostBasis          planner.CostBasis
}

// Trader 持有单个周期的账户快照，负责生成并执行交易计划。
type Trader struct {
	params     params.Parameters
	prediction forecast.Prediction
	snapshot   exchange.Snapshot
	executor   execution.OrderExecutor
	opts       Options
	logger     *zap.Logger
}

// New 读取一次账户快照并创建 Trader，读取失败返回 *exchange.ReadError。
func New(ctx context.Context, reader exchange.AccountReader, executor execution.OrderExecutor, p params.Parameters, prediction forecast.Prediction, opts Options, logger *zap.Logger) (*Trader, error) {
	if reader == nil || executor == nil {
		return nil, fmt.Errorf("trader: reader 与 executor 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	snapshot, err := exchange.ReadSnapshot(ctx, reader, p.Pairs, logger)
	if err != nil {
		return nil, fmt.Errorf("trader: 读取账户快照失败: %w", err)
	}

	return &Trader{
		params:     p,
		prediction: prediction,
		snapshot:   snapshot,
		executor:   executor,
		opts:       opts,
		logger:     logger,
	}, nil
}

// Snapshot 返回本周期使用的账户快照。
func (t *Trader) Snapshot() exchange.Snapshot {
	return t.snapshot
}

// PreparePlan 依次执行候选生成、风险聚合、去重合并与限制过滤。
func (t *Trader) PreparePlan() planner.Plan {
	p := t.params
	builder := planner.NewBuilder(planner.Settings{
		Pairs:     p.Pairs,
		Steps:     p.Steps,
		Threshold: p.Threshold,
		BuyField:  p.CurrentPriceBuyFrom,
		SellField: p.CurrentPriceSellFrom,
	}, t.prediction, t.snapshot, t.opts.CostBasis, t.logger)

	candidates := builder.Candidates()
	aggregated := risk.Aggregate(candidates, p.Steps, risk.Clamp(p.Risk), p.TopN)
	consolidated := planner.RemoveDuplicates(aggregated)
	plan := planner.FilterByRestrictions(consolidated, planner.Limits{
		Budget:             p.Budget,
		TopN:               p.TopN,
		Balances:           t.snapshot.Balances,
		MinNotional:        t.snapshot.MinNotional,
		DefaultMinNotional: t.opts.DefaultMinNotional,
	}, t.logger)

	t.logger.Info("交易计划生成完成",
		zap.Int("candidates", countOperations(candidates)),
		zap.Int("aggregated", len(aggregated)),
		zap.Int("consolidated", len(consolidated)),
		zap.Int("planned", len(plan)),
	)
	for _, op := range plan {
		t.logger.Debug("计划操作", zap.Stringer("operation", op))
	}
	return plan
}

// Trade 执行计划，reopen 时撤销快照中同方向的挂单。
func (t *Trader) Trade(ctx context.Context, plan planner.Plan) []execution.Result {
	if len(plan) == 0 {
		return []execution.Result{}
	}
	return t.executor.Trade(ctx, plan, execution.Options{
		Reopen:     t.params.Reopen,
		OpenOrders: t.snapshot.OpenOrders,
	})
}

func countOperations(plans []planner.Plan) int {
	n := 0
	for _, plan := range plans {
		n += len(plan)
	}
	return n
}
