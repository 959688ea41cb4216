package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"cycle-trader/internal/ai"
	"cycle-trader/internal/config"
	"cycle-trader/internal/exchange"
	"cycle-trader/internal/execution"
	"cycle-trader/internal/forecast"
	"cycle-trader/internal/metrics"
	"cycle-trader/internal/monitor"
	"cycle-trader/internal/store"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.Store
	registry *prometheus.Registry
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &App{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		registry: registry,
	}
}

// buildCycle 根据配置组装交易周期的全部协作方。
func (a *App) buildCycle() (*Cycle, *monitor.Service, error) {
	exClient, err := exchange.NewClient(a.cfg.Exchange, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化交易所客户端失败: %w", err)
	}

	forecaster := forecast.NewService(a.logger)
	if a.cfg.Forecast.OpenAI.APIKey != "" {
		aiClient, err := ai.NewClient(a.cfg.Forecast.OpenAI, a.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("初始化AI客户端失败: %w", err)
		}
		forecaster.RegisterLLM(aiClient)
	}

	var executor execution.OrderExecutor
	if a.cfg.Execution.Simulation {
		a.logger.Info("执行器处于模拟模式")
		executor = execution.NewSimulatedExecutor(a.logger)
	} else {
		executor = execution.NewExecutor(exClient, a.logger)
	}

	monitorSvc, err := monitor.NewService(a.store, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化监控服务失败: %w", err)
	}

	cycle, err := NewCycle(CycleDeps{
		Market:      exchange.NewMarketDataService(exClient, a.logger),
		Account:     exClient,
		Forecast:    forecaster,
		Executor:    executor,
		Journal:     monitorSvc,
		Metrics:     metrics.NewCollector(a.registry),
		Defaults:    a.cfg.Cycle,
		MinNotional: a.cfg.Execution.MinNotional,
		Timeout:     a.cfg.Scheduler.CycleTimeout,
	}, a.logger)
	if err != nil {
		return nil, nil, err
	}
	return cycle, monitorSvc, nil
}

// RunOnce 以给定参数覆盖默认值执行单个周期。
func (a *App) RunOnce(ctx context.Context, overrides map[string]any) ([]execution.Result, error) {
	cycle, _, err := a.buildCycle()
	if err != nil {
		return nil, err
	}
	return cycle.StartCycleIteration(ctx, overrides)
}

// Run 按 cron 表达式或固定间隔循环执行交易周期，直到 ctx 结束。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("交易系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("exchange", a.cfg.Exchange.Name),
		zap.Bool("simulation", a.cfg.Execution.Simulation),
	)

	if err := a.store.Ping(ctx); err != nil {
		return fmt.Errorf("数据库不可用: %w", err)
	}

	cycle, monitorSvc, err := a.buildCycle()
	if err != nil {
		return err
	}

	if a.cfg.Monitor.Enabled {
		if err := startMonitorServer(ctx, monitorSvc, a.registry, a.cfg.Monitor.Port, a.logger); err != nil {
			return err
		}
	}

	if a.cfg.Scheduler.RunOnStart {
		a.tick(ctx, cycle)
	}

	if spec := a.cfg.Scheduler.Cron; spec != "" {
		return a.runCron(ctx, cycle, spec)
	}
	return a.runLoop(ctx, cycle)
}

func (a *App) runCron(ctx context.Context, cycle *Cycle, spec string) error {
	scheduler := cron.New(cron.WithSeconds())
	if _, err := scheduler.AddFunc(spec, func() { a.tick(ctx, cycle) }); err != nil {
		return fmt.Errorf("注册定时任务失败: %w", err)
	}
	scheduler.Start()
	a.logger.Info("定时调度已启动", zap.String("cron", spec))

	<-ctx.Done()
	// 等待进行中的周期结束
	<-scheduler.Stop().Done()
	return a.exitErr(ctx)
}

func (a *App) runLoop(ctx context.Context, cycle *Cycle) error {
	loopInterval := a.cfg.Scheduler.LoopInterval
	if loopInterval <= 0 {
		loopInterval = 5 * time.Minute
	}

	ticker := time.NewTicker(loopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return a.exitErr(ctx)
		case <-ticker.C:
			a.tick(ctx, cycle)
		}
	}
}

func (a *App) tick(ctx context.Context, cycle *Cycle) {
	if _, err := cycle.StartCycleIteration(ctx, nil); err != nil {
		if errors.Is(err, ErrCycleAlreadyRunning) {
			a.logger.Warn("上一周期尚未结束，跳过本次调度")
			return
		}
		a.logger.Error("执行交易周期失败", zap.Error(err))
	}
}

func (a *App) exitErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("系统异常退出: %w", err)
	}
	a.logger.Info("系统收到退出信号，正在停止")
	return nil
}
