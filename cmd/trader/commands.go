package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"cycle-trader/internal/app"
	"cycle-trader/internal/config"
	"cycle-trader/internal/execution"
	"cycle-trader/internal/log"
	"cycle-trader/internal/store"
)

// cliDeps 为子命令共享的已初始化依赖。
type cliDeps struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

func (r *cliDeps) close() {
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("关闭数据库失败", zap.Error(err))
		}
	}
	if r.logger != nil {
		_ = r.logger.Sync()
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		rt         cliDeps
	)

	root := &cobra.Command{
		Use:           "trader",
		Short:         "周期性预测并执行交易计划",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("加载配置失败: %w", err)
			}
			logger, err := log.NewLogger(cfg.Logging)
			if err != nil {
				return fmt.Errorf("初始化日志失败: %w", err)
			}
			sqliteStore, err := store.NewSQLite(cfg.Database)
			if err != nil {
				_ = logger.Sync()
				return fmt.Errorf("初始化数据库失败: %w", err)
			}
			rt = cliDeps{cfg: cfg, logger: logger, store: sqliteStore}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(cmd.Context(), &rt)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "配置文件路径，默认使用 configs/config.yaml")

	root.AddCommand(newRunCmd(&rt), newCycleCmd(&rt))
	cobra.OnFinalize(rt.close)
	return root
}

func newRunCmd(rt *cliDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "按调度持续运行交易周期",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(cmd.Context(), rt)
		},
	}
}

func newCycleCmd(rt *cliDeps) *cobra.Command {
	var paramsPath string

	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "立即执行一次交易周期并输出结果",
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := loadOverrides(paramsPath)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			results, err := app.New(rt.cfg, rt.logger, rt.store).RunOnce(ctx, overrides)
			if err != nil {
				return fmt.Errorf("执行交易周期失败: %w", err)
			}
			return printResults(cmd, results)
		},
	}
	cmd.Flags().StringVar(&paramsPath, "params", "", "覆盖周期参数的 YAML 文件")
	return cmd
}

func runService(parent context.Context, rt *cliDeps) error {
	ctx, stop := signalContext(parent)
	defer stop()

	if err := app.New(rt.cfg, rt.logger, rt.store).Run(ctx); err != nil {
		rt.logger.Error("系统运行异常", zap.Error(err))
		return err
	}
	rt.logger.Info("系统已安全退出")
	return nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// loadOverrides 读取参数覆盖文件，路径为空时返回 nil。
func loadOverrides(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取参数文件失败: %w", err)
	}
	var overrides map[string]any
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("解析参数文件失败: %w", err)
	}
	return overrides, nil
}

type resultView struct {
	Pair        string  `json:"pair"`
	Type        string  `json:"type"`
	Price       float64 `json:"price"`
	Amount      float64 `json:"amount"`
	OrderNumber string  `json:"order_number,omitempty"`
	Simulated   bool    `json:"simulated,omitempty"`
	Error       string  `json:"error,omitempty"`
}

func printResults(cmd *cobra.Command, results []execution.Result) error {
	views := make([]resultView, 0, len(results))
	for _, r := range results {
		v := resultView{
			Pair:        r.Operation.Pair,
			Type:        string(r.Operation.Type),
			Price:       r.Operation.Price,
			Amount:      r.Operation.Amount,
			OrderNumber: r.OrderNumber,
			Simulated:   r.Simulated,
		}
		if r.Error != nil {
			v.Error = r.Error.Error()
		}
		views = append(views, v)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(views)
}
