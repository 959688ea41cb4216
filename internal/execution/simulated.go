package execution

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cycle-trader/internal/planner"
)

// SimulatedExecutor 只记录委托，不访问交易所。
type SimulatedExecutor struct {
	logger *zap.Logger
}

var _ OrderExecutor = (*SimulatedExecutor)(nil)

// NewSimulatedExecutor 创建模拟执行器。
func NewSimulatedExecutor(logger *zap.Logger) *SimulatedExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimulatedExecutor{logger: logger}
}

// Trade 为每个操作生成模拟委托号。
func (s *SimulatedExecutor) Trade(_ context.Context, plan planner.Plan, opts Options) []Result {
	results := make([]Result, 0, len(plan))
	for _, op := range plan {
		result := Result{
			Operation:   op,
			OrderNumber: "sim-" + uuid.NewString(),
			Status:      "open",
			Simulated:   true,
		}
		for _, order := range opts.cancelable(op) {
			result.Canceled = append(result.Canceled, order.OrderNumber)
		}
		s.logger.Info("模拟下单",
			zap.Stringer("operation", op),
			zap.String("order_number", result.OrderNumber),
			zap.Strings("canceled", result.Canceled),
		)
		results = append(results, result)
	}
	return results
}
