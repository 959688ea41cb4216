package execution

import (
	"fmt"

	"cycle-trader/internal/planner"
)

// 失败阶段。
const (
	StageCancel = "cancel"
	StagePlace  = "place"
)

// Result 为单个操作的执行结果。
type Result struct {
	Operation   planner.Operation `json:"operation"`
	OrderNumber string            `json:"order_number,omitempty"`
	Status      string            `json:"status,omitempty"`
	Filled      float64           `json:"filled,omitempty"`
	Canceled    []string          `json:"canceled,omitempty"`
	Simulated   bool              `json:"simulated"`
	Error       error             `json:"-"`
}

// OK 表示委托已提交成功。
func (r Result) OK() bool {
	return r.Error == nil
}

// PlacementError 表示单个操作撤单或下单失败，不影响其余操作。
type PlacementError struct {
	Operation planner.Operation
	Stage     string
	Err       error
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("execution: %s 失败 [%s]: %v", e.Stage, e.Operation, e.Err)
}

func (e *PlacementError) Unwrap() error {
	return e.Err
}

// Summary 汇总执行结果。
type Summary struct {
	Placed    int
	Failed    int
	Canceled  int
	Simulated int
}

// Summarize 统计结果数量。
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		s.Canceled += len(r.Canceled)
		if !r.OK() {
			s.Failed++
			continue
		}
		s.Placed++
		if r.Simulated {
			s.Simulated++
		}
	}
	return s
}
