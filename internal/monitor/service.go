package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cycle-trader/internal/execution"
	"cycle-trader/internal/forecast"
	"cycle-trader/internal/params"
	"cycle-trader/internal/planner"
	"cycle-trader/internal/store"
)

// Service 负责持久化周期日志事件。
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewService 初始化监控服务，创建所需表结构。
func NewService(store *store.Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("monitor: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		db:     store.DB(),
		logger: logger,
	}

	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS monitor_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	cycle_id TEXT NOT NULL DEFAULT '',
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_monitor_events_type ON monitor_events(event_type);
CREATE INDEX IF NOT EXISTS idx_monitor_events_cycle ON monitor_events(cycle_id);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("monitor: 初始化表失败: %w", err)
	}
	return nil
}

// Record 写入单个事件。
func (s *Service) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("monitor: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO monitor_events (cycle_id, event_type, payload, created_at) VALUES (?, ?, ?, ?)`,
		event.CycleID, string(event.Type), string(payload), event.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("monitor: 写入事件失败: %w", err)
	}

	return nil
}

func (s *Service) record(ctx context.Context, cycleID string, typ EventType, payload interface{}) {
	if err := s.Record(ctx, Event{
		Type:      typ,
		CycleID:   cycleID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}); err != nil {
		s.logger.Warn("记录监控事件失败",
			zap.String("event_type", string(typ)),
			zap.String("cycle_id", cycleID),
			zap.Error(err),
		)
	}
}

// RecordCycleStarted 记录周期开始。
func (s *Service) RecordCycleStarted(ctx context.Context, cycleID string, p params.Parameters) {
	s.record(ctx, cycleID, EventCycleStarted, CycleStartedPayload{Params: p})
}

// RecordForecast 记录预测结果。
func (s *Service) RecordForecast(ctx context.Context, cycleID string, p params.Parameters, prediction forecast.Prediction, excluded map[string]string) {
	s.record(ctx, cycleID, EventForecast, ForecastPayload{
		Algorithm:  p.Algorithm,
		Steps:      p.Steps,
		Prediction: prediction,
		Excluded:   excluded,
	})
}

// RecordPlan 记录最终计划。
func (s *Service) RecordPlan(ctx context.Context, cycleID string, plan planner.Plan, retrievedAt time.Time) {
	s.record(ctx, cycleID, EventPlan, PlanPayload{Plan: plan, RetrievedAt: retrievedAt})
}

// RecordExecution 记录订单执行。
func (s *Service) RecordExecution(ctx context.Context, cycleID string, results []execution.Result) {
	s.record(ctx, cycleID, EventExecution, ExecutionPayload{Results: executionRecords(results)})
}

// RecordCycleFinished 记录周期结束。
func (s *Service) RecordCycleFinished(ctx context.Context, cycleID, outcome string, duration time.Duration, results []execution.Result) {
	summary := execution.Summarize(results)
	s.record(ctx, cycleID, EventCycleFinished, CycleFinishedPayload{
		Outcome:  outcome,
		Duration: duration,
		Placed:   summary.Placed,
		Failed:   summary.Failed,
	})
}

// RecordError 记录异常。
func (s *Service) RecordError(ctx context.Context, cycleID, msg string, err error, ctxMap map[string]interface{}) {
	payload := ErrorPayload{
		Message: msg,
		Context: ctxMap,
	}
	if err != nil {
		payload.Error = err.Error()
	}
	s.record(ctx, cycleID, EventError, payload)
}

// Filter 为事件查询条件，零值表示不限。
type Filter struct {
	Type    EventType
	CycleID string
	Limit   int
}

// ListEvents 按类型检索最近事件。
func (s *Service) ListEvents(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	return s.Query(ctx, Filter{Type: eventType, Limit: limit})
}

// Query 按条件检索最近事件，按写入顺序倒序返回。
func (s *Service) Query(ctx context.Context, filter Filter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT cycle_id, event_type, payload, created_at FROM monitor_events WHERE 1 = 1`
	args := make([]interface{}, 0, 3)
	if filter.Type != "" {
		query += ` AND event_type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.CycleID != "" {
		query += ` AND cycle_id = ?`
		args = append(args, filter.CycleID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("monitor: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			cycleID string
			typ     string
			payload string
			created string
		)
		if scanErr := rows.Scan(&cycleID, &typ, &payload, &created); scanErr != nil {
			return nil, fmt.Errorf("monitor: 解析事件失败: %w", scanErr)
		}

		ts, parseErr := time.Parse(time.RFC3339Nano, created)
		if parseErr != nil {
			ts = time.Now().UTC()
		}

		events = append(events, Event{
			Type:      EventType(typ),
			CycleID:   cycleID,
			Timestamp: ts,
			Payload:   json.RawMessage(payload),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monitor: 读取事件失败: %w", err)
	}

	return events, nil
}
