package forecast

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"
)

// Prediction 为 交易对 -> 步数(从1开始) -> 预测价格。
type Prediction map[string]map[int]float64

// Pairs 返回有预测结果的交易对，按字母排序。
func (p Prediction) Pairs() []string {
	out := make([]string, 0, len(p))
	for pair := range p {
		out = append(out, pair)
	}
	sort.Strings(out)
	return out
}

// Provider 为外部预测协作方。
type Provider interface {
	// Supports 判断算法名是否可用，周期在拉取数据前据此校验参数。
	Supports(algorithm string) bool
	Predict(ctx context.Context, series map[string][]float64, steps int, hyperparameters map[string]any, algorithm string) (Prediction, error)
}

// Predictor 对单个交易对的序列做多步预测。
type Predictor interface {
	Forecast(ctx context.Context, pair string, series []float64, steps int, hyperparameters map[string]any) ([]float64, error)
}

// PredictorFunc 将函数适配为 Predictor。
type PredictorFunc func(ctx context.Context, pair string, series []float64, steps int, hyperparameters map[string]any) ([]float64, error)

// Forecast 实现 Predictor。
func (f PredictorFunc) Forecast(ctx context.Context, pair string, series []float64, steps int, hyperparameters map[string]any) ([]float64, error) {
	return f(ctx, pair, series, steps, hyperparameters)
}

// Error 表示所有交易对均预测失败。
type Error struct {
	Algorithm string
	Failures  map[string]error
}

func (e *Error) Error() string {
	return fmt.Sprintf("forecast: %s 全部交易对预测失败: %v", e.Algorithm, e.Unwrap())
}

func (e *Error) Unwrap() error {
	pairs := make([]string, 0, len(e.Failures))
	for pair := range e.Failures {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)

	var err error
	for _, pair := range pairs {
		err = multierr.Append(err, fmt.Errorf("%s: %w", pair, e.Failures[pair]))
	}
	return err
}

// 未指定超参数时各算法使用的默认值。
var defaultHyperparameters = map[string]map[string]any{
	"TSF":       {"timeperiod": 14},
	"LINEARREG": {"timeperiod": 14},
	"EMA":       {"timeperiod": 10},
}

// resolveHyperparameters 优先取按算法名嵌套的配置，其次取平铺配置，否则使用默认值。
func resolveHyperparameters(algorithm string, hyper map[string]any) map[string]any {
	for key, value := range hyper {
		if !strings.EqualFold(key, algorithm) {
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			return nested
		}
	}
	if len(hyper) > 0 {
		flat := true
		for _, value := range hyper {
			if _, nested := value.(map[string]any); nested {
				flat = false
				break
			}
		}
		if flat {
			return hyper
		}
	}
	if defaults, ok := defaultHyperparameters[algorithm]; ok {
		return defaults
	}
	return map[string]any{}
}
