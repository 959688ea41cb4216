package monitor

import (
	"time"

	"cycle-trader/internal/execution"
	"cycle-trader/internal/forecast"
	"cycle-trader/internal/params"
	"cycle-trader/internal/planner"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventCycleStarted  EventType = "cycle_started"
	EventForecast      EventType = "forecast"
	EventPlan          EventType = "plan"
	EventExecution     EventType = "execution"
	EventCycleFinished EventType = "cycle_finished"
	EventError         EventType = "error"
)

// Event 封装通用监控事件。
type Event struct {
	Type      EventType   `json:"type"`
	CycleID   string      `json:"cycle_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// CycleStartedPayload 记录周期参数。
type CycleStartedPayload struct {
	Params params.Parameters `json:"params"`
}

// ForecastPayload 记录预测结果与被剔除的交易对。
type ForecastPayload struct {
	Algorithm  string              `json:"algorithm"`
	Steps      int                 `json:"steps"`
	Prediction forecast.Prediction `json:"prediction"`
	Excluded   map[string]string   `json:"excluded,omitempty"`
}

// PlanPayload 记录最终计划。
type PlanPayload struct {
	Plan        planner.Plan `json:"plan"`
	RetrievedAt time.Time    `json:"retrieved_at"`
}

// ExecutionRecord 为可序列化的执行结果。
type ExecutionRecord struct {
	Operation   planner.Operation `json:"operation"`
	OrderNumber string            `json:"order_number,omitempty"`
	Status      string            `json:"status,omitempty"`
	Canceled    []string          `json:"canceled,omitempty"`
	Simulated   bool              `json:"simulated"`
	Error       string            `json:"error,omitempty"`
}

// ExecutionPayload 记录一次执行的全部结果。
type ExecutionPayload struct {
	Results []ExecutionRecord `json:"results"`
}

// CycleFinishedPayload 记录周期结束状态。
type CycleFinishedPayload struct {
	Outcome  string        `json:"outcome"`
	Duration time.Duration `json:"duration"`
	Placed   int           `json:"placed"`
	Failed   int           `json:"failed"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func executionRecords(results []execution.Result) []ExecutionRecord {
	out := make([]ExecutionRecord, 0, len(results))
	for _, r := range results {
		rec := ExecutionRecord{
			Operation:   r.Operation,
			OrderNumber: r.OrderNumber,
			Status:      r.Status,
			Canceled:    r.Canceled,
			Simulated:   r.Simulated,
		}
		if r.Error != nil {
			rec.Error = r.Error.Error()
		}
		out = append(out, rec)
	}
	return out
}
