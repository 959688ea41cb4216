package indicator

import (
	"context"
	"fmt"
	"math"
	"strings"

	talib "github.com/markcheno/go-talib"
)

// 支持的统计预测方法。
const (
	MethodTSF       = "TSF"
	MethodLinearReg = "LINEARREG"
	MethodEMA       = "EMA"
)

const defaultTimePeriod = 14

type projectFunc func(inReal []float64, inTimePeriod int) []float64

var methods = map[string]projectFunc{
	MethodTSF:       talib.Tsf,
	MethodLinearReg: talib.LinearReg,
	MethodEMA:       talib.Ema,
}

// Methods 返回支持的方法名。
func Methods() []string {
	return []string{MethodTSF, MethodLinearReg, MethodEMA}
}

// Projector 基于 TA-Lib 指标对单个序列做逐步外推。
type Projector struct {
	method string
	fn     projectFunc
}

// NewProjector 创建指定方法的 Projector。
func NewProjector(method string) (*Projector, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	fn, ok := methods[method]
	if !ok {
		return nil, fmt.Errorf("indicator: 不支持的预测方法: %s", method)
	}
	return &Projector{method: method, fn: fn}, nil
}

// Method 返回方法名。
func (p *Projector) Method() string {
	return p.method
}

// Project 逐步外推 steps 个点，每一步的结果追加到序列后再计算下一步。
// hyper 中的 timeperiod 控制回看窗口，缺省为 14。
func (p *Projector) Project(ctx context.Context, series []float64, steps int, hyper map[string]any) ([]float64, error) {
	if steps < 1 {
		return nil, fmt.Errorf("indicator: steps 必须大于0: %d", steps)
	}
	period, err := timePeriod(hyper)
	if err != nil {
		return nil, err
	}
	if len(series) < period {
		return nil, fmt.Errorf("indicator: 序列长度不足: 需要 %d, 实际 %d", period, len(series))
	}

	work := make([]float64, len(series), len(series)+steps)
	copy(work, series)

	out := make([]float64, 0, steps)
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		values := p.fn(work, period)
		next := Last(values)
		if math.IsNaN(next) || math.IsInf(next, 0) {
			return nil, fmt.Errorf("indicator: %s 第 %d 步结果非法", p.method, i+1)
		}
		out = append(out, next)
		work = append(work, next)
	}
	return out, nil
}

func timePeriod(hyper map[string]any) (int, error) {
	raw, ok := lookup(hyper, "timeperiod")
	if !ok {
		return defaultTimePeriod, nil
	}
	var period int
	switch v := raw.(type) {
	case int:
		period = v
	case int64:
		period = int(v)
	case float64:
		period = int(v)
	default:
		return 0, fmt.Errorf("indicator: timeperiod 类型非法: %T", raw)
	}
	if period < 2 {
		return 0, fmt.Errorf("indicator: timeperiod 必须不小于2: %d", period)
	}
	return period, nil
}

func lookup(m map[string]any, key string) (any, bool) {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}
