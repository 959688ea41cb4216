package params

import (
	"time"

	"go.uber.org/zap"
)

// Unit 为时间窗口单位。
type Unit string

const (
	UnitHour  Unit = "HOUR"
	UnitDay   Unit = "DAY"
	UnitWeek  Unit = "WEEK"
	UnitMonth Unit = "MONTH"
)

const week = 7 * 24 * time.Hour

var unitDurations = map[Unit]time.Duration{
	UnitHour: time.Hour,
	UnitDay:  24 * time.Hour,
	UnitWeek: week,
	// 一个月按 4 周近似
	UnitMonth: 4 * week,
}

// DefaultWindow 为单位无法识别时使用的窗口。
var DefaultWindow = map[string]int{string(UnitMonth): 1}

// Range 为解析后的 [Start, End) 时间范围。
type Range struct {
	Start time.Time
	End   time.Time
}

// Duration 返回窗口长度。
func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// ResolveWindow 将窗口配置转换为以 now 为终点的时间范围，未知单位回退到一个月并记录告警。
func ResolveWindow(window map[string]int, now time.Time, logger *zap.Logger) Range {
	if logger == nil {
		logger = zap.NewNop()
	}

	for unit, amount := range window {
		step, ok := unitDurations[Unit(unit)]
		if ok && amount > 0 {
			return Range{Start: now.Add(-time.Duration(amount) * step), End: now}
		}
		logger.Warn("时间窗口无法识别，使用默认窗口",
			zap.String("unit", unit),
			zap.Int("amount", amount),
			zap.Any("default", DefaultWindow),
		)
		break
	}

	if len(window) == 0 {
		logger.Warn("时间窗口为空，使用默认窗口", zap.Any("default", DefaultWindow))
	}
	return Range{Start: now.Add(-unitDurations[UnitMonth]), End: now}
}
