package ai

import (
	"fmt"
	"math"
)

// ForecastResult 表示大模型返回的价格预测。
type ForecastResult struct {
	Predictions []float64 `json:"predictions"`
	Confidence  float64   `json:"confidence"`
	Reasoning   string    `json:"reasoning"`
}

// Validate 校验预测字段合法性。
func (r ForecastResult) Validate(steps int) error {
	if len(r.Predictions) < steps {
		return fmt.Errorf("ai: 预测点数不足: 需要 %d, 实际 %d", steps, len(r.Predictions))
	}
	for i, v := range r.Predictions[:steps] {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("ai: 第 %d 步预测价格非法: %v", i+1, v)
		}
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("ai: confidence 超出范围: %.2f", r.Confidence)
	}
	return nil
}
