package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Forecast  ForecastConfig  `mapstructure:"forecast"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Cycle     map[string]any  `mapstructure:"cycle"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// ExchangeConfig 描述交易所连接信息。
type ExchangeConfig struct {
	Name       string          `mapstructure:"name"`
	APIKey     string          `mapstructure:"api_key"`
	APISecret  string          `mapstructure:"api_secret"`
	UseSandbox bool            `mapstructure:"use_sandbox"`
	Retry      RetryConfig     `mapstructure:"retry"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	// HistoryDays 限定拉取成交历史的回溯天数。
	HistoryDays int `mapstructure:"history_days"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// RateLimitConfig 控制客户端侧的请求速率。
type RateLimitConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

// ForecastConfig 描述预测模型相关参数。
type ForecastConfig struct {
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// OpenAIConfig 描述大模型调用参数。
type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ExecutionConfig 控制下单行为。
type ExecutionConfig struct {
	Simulation bool `mapstructure:"simulation"`
	// MinNotional 为交易所未提供市场限制时使用的最小下单金额。
	MinNotional float64 `mapstructure:"min_notional"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// SchedulerConfig 控制周期触发节奏。
type SchedulerConfig struct {
	// Cron 非空时优先使用 cron 表达式（含秒字段）。
	Cron         string        `mapstructure:"cron"`
	LoopInterval time.Duration `mapstructure:"loop_interval"`
	CycleTimeout time.Duration `mapstructure:"cycle_timeout"`
	RunOnStart   bool          `mapstructure:"run_on_start"`
}

// MonitorConfig 控制只读监控接口。
type MonitorConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Exchange.Name == "" {
		err = multierr.Append(err, errors.New("exchange.name 不能为空"))
	}
	if !strings.EqualFold(c.Exchange.Name, "poloniex") {
		err = multierr.Append(err, fmt.Errorf("exchange.name 暂不支持: %s", c.Exchange.Name))
	}
	if c.Exchange.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
	}
	if c.Exchange.Retry.MinDelay <= 0 || c.Exchange.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.delay 必须为正"))
	}
	if c.Exchange.Retry.MinDelay > c.Exchange.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("exchange.retry.min_delay 不能大于 max_delay"))
	}
	if c.Exchange.RateLimit.PerSecond <= 0 {
		err = multierr.Append(err, errors.New("exchange.rate_limit.per_second 必须大于0"))
	}
	if c.Exchange.RateLimit.Burst <= 0 {
		err = multierr.Append(err, errors.New("exchange.rate_limit.burst 必须大于0"))
	}
	if c.Exchange.HistoryDays <= 0 {
		err = multierr.Append(err, errors.New("exchange.history_days 必须大于0"))
	}
	if c.Forecast.OpenAI.APIKey != "" {
		if c.Forecast.OpenAI.Model == "" {
			err = multierr.Append(err, errors.New("forecast.openai.model 不能为空"))
		}
		if c.Forecast.OpenAI.Timeout <= 0 {
			err = multierr.Append(err, errors.New("forecast.openai.timeout 必须大于0"))
		}
	}
	if c.Execution.MinNotional < 0 {
		err = multierr.Append(err, errors.New("execution.min_notional 不能为负"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}
	if c.Scheduler.Cron == "" && c.Scheduler.LoopInterval <= 0 {
		err = multierr.Append(err, errors.New("scheduler.cron 与 scheduler.loop_interval 至少配置一个"))
	}
	if c.Scheduler.CycleTimeout < 0 {
		err = multierr.Append(err, errors.New("scheduler.cycle_timeout 不能为负"))
	}
	if c.Monitor.Enabled && (c.Monitor.Port <= 0 || c.Monitor.Port > 65535) {
		err = multierr.Append(err, errors.New("monitor.port 必须位于(0,65535]"))
	}
	if len(c.Cycle) == 0 {
		err = multierr.Append(err, errors.New("cycle 参数不能为空"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
