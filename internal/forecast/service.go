package forecast

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cycle-trader/internal/indicator"
	"cycle-trader/internal/params"
)

// 大模型预测算法名。
const AlgorithmOpenAI = "OPENAI"

// 自回归族算法名映射到 TSF 线性外推。
var algorithmAliases = map[string]string{
	"ARIMA":  indicator.MethodTSF,
	"SARIMA": indicator.MethodTSF,
}

// Service 按算法分发预测请求，每个交易对并发执行。
type Service struct {
	predictors  map[string]Predictor
	concurrency int
	logger      *zap.Logger
}

var _ Provider = (*Service)(nil)

// NewService 创建预测服务，默认注册 TA-Lib 统计外推算法。
func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		predictors:  make(map[string]Predictor),
		concurrency: runtime.NumCPU(),
		logger:      logger,
	}
	for _, method := range indicator.Methods() {
		projector, err := indicator.NewProjector(method)
		if err != nil {
			continue
		}
		s.Register(method, PredictorFunc(func(ctx context.Context, _ string, series []float64, steps int, hyper map[string]any) ([]float64, error) {
			return projector.Project(ctx, series, steps, hyper)
		}))
	}
	for alias, target := range algorithmAliases {
		s.predictors[alias] = s.predictors[target]
	}
	return s
}

// Register 注册或替换算法实现。
func (s *Service) Register(algorithm string, predictor Predictor) {
	s.predictors[strings.ToUpper(strings.TrimSpace(algorithm))] = predictor
}

// Supports 判断算法是否已注册。
func (s *Service) Supports(algorithm string) bool {
	_, ok := s.predictors[strings.ToUpper(strings.TrimSpace(algorithm))]
	return ok
}

// Predict 对每个交易对并发预测，单个交易对失败时剔除该交易对，全部失败时返回 *Error。
func (s *Service) Predict(ctx context.Context, series map[string][]float64, steps int, hyperparameters map[string]any, algorithm string) (Prediction, error) {
	algorithm = strings.ToUpper(strings.TrimSpace(algorithm))
	predictor, ok := s.predictors[algorithm]
	if !ok {
		return nil, &params.ConfigurationError{Err: fmt.Errorf("不支持的预测算法: %s", algorithm)}
	}
	if steps < 1 {
		return nil, &params.ConfigurationError{Err: fmt.Errorf("steps 必须大于0: %d", steps)}
	}

	hyper := resolveHyperparameters(algorithm, hyperparameters)
	prediction := make(Prediction, len(series))
	failures := make(map[string]error)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	for pair, values := range series {
		g.Go(func() error {
			out, err := s.forecastPair(gctx, predictor, pair, values, steps, hyper)
			if gctx.Err() != nil {
				return gctx.Err()
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[pair] = err
				return nil
			}
			prediction[pair] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("forecast: 预测被中断: %w", err)
	}

	for pair, err := range failures {
		s.logger.Warn("交易对预测失败，已剔除",
			zap.String("pair", pair),
			zap.String("algorithm", algorithm),
			zap.Error(err),
		)
	}
	if len(prediction) == 0 && len(failures) > 0 {
		return Prediction{}, &Error{Algorithm: algorithm, Failures: failures}
	}

	s.logger.Info("预测完成",
		zap.String("algorithm", algorithm),
		zap.Int("pairs", len(prediction)),
		zap.Int("failed", len(failures)),
		zap.Int("steps", steps),
	)
	return prediction, nil
}

func (s *Service) forecastPair(ctx context.Context, predictor Predictor, pair string, values []float64, steps int, hyper map[string]any) (map[int]float64, error) {
	if len(values) == 0 {
		return nil, errors.New("历史序列为空")
	}
	out, err := predictor.Forecast(ctx, pair, values, steps, hyper)
	if err != nil {
		return nil, err
	}
	if len(out) < steps {
		return nil, fmt.Errorf("预测步数不足: 需要 %d, 实际 %d", steps, len(out))
	}
	byStep := make(map[int]float64, steps)
	for i := 0; i < steps; i++ {
		byStep[i+1] = out[i]
	}
	return byStep, nil
}

// LLMForecaster 为大模型预测客户端。
type LLMForecaster interface {
	Forecast(ctx context.Context, pair string, series []float64, steps int) ([]float64, error)
}

// RegisterLLM 以 OPENAI 算法名注册大模型预测。
func (s *Service) RegisterLLM(client LLMForecaster) {
	s.Register(AlgorithmOpenAI, PredictorFunc(func(ctx context.Context, pair string, series []float64, steps int, _ map[string]any) ([]float64, error) {
		return client.Forecast(ctx, pair, series, steps)
	}))
}
