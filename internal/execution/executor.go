package execution

import (
	"context"

	"go.uber.org/zap"

	"cycle-trader/internal/exchange"
	"cycle-trader/internal/planner"
)

type orderClient interface {
	PlaceOrder(ctx context.Context, side exchange.Side, pair string, rate, amount float64, orderType exchange.OrderType) (exchange.OrderResult, error)
	CancelOrder(ctx context.Context, orderNumber, pair string) error
}

// Executor 逐个提交计划中的操作，单个失败不影响其余操作。
type Executor struct {
	client orderClient
	logger *zap.Logger
}

var _ OrderExecutor = (*Executor)(nil)

// NewExecutor 创建执行器。
func NewExecutor(client orderClient, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		client: client,
		logger: logger,
	}
}

// Trade 按计划顺序执行，返回与计划一一对应的结果。
func (e *Executor) Trade(ctx context.Context, plan planner.Plan, opts Options) []Result {
	results := make([]Result, 0, len(plan))
	for _, op := range plan {
		if err := ctx.Err(); err != nil {
			results = append(results, Result{
				Operation: op,
				Error:     &PlacementError{Operation: op, Stage: StagePlace, Err: err},
			})
			continue
		}
		results = append(results, e.execute(ctx, op, opts.cancelable(op)))
	}
	return results
}

func (e *Executor) execute(ctx context.Context, op planner.Operation, cancelable []exchange.OrderRecord) Result {
	result := Result{Operation: op}

	for _, order := range cancelable {
		if err := e.client.CancelOrder(ctx, order.OrderNumber, op.Pair); err != nil {
			e.logger.Error("撤单失败，跳过该操作",
				zap.String("pair", op.Pair),
				zap.String("order_number", order.OrderNumber),
				zap.Error(err),
			)
			result.Error = &PlacementError{Operation: op, Stage: StageCancel, Err: err}
			return result
		}
		result.Canceled = append(result.Canceled, order.OrderNumber)
		e.logger.Info("已撤销旧挂单",
			zap.String("pair", op.Pair),
			zap.String("order_number", order.OrderNumber),
		)
	}

	placed, err := e.client.PlaceOrder(ctx, op.Type.Side(), op.Pair, op.Price, op.Amount, op.OrderType)
	if err != nil {
		e.logger.Error("下单失败",
			zap.Stringer("operation", op),
			zap.Error(err),
		)
		result.Error = &PlacementError{Operation: op, Stage: StagePlace, Err: err}
		return result
	}

	result.OrderNumber = placed.OrderNumber
	result.Status = placed.Status
	result.Filled = placed.Filled
	e.logger.Info("下单成功",
		zap.Stringer("operation", op),
		zap.String("order_number", placed.OrderNumber),
		zap.String("status", placed.Status),
	)
	return result
}
