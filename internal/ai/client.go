package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"cycle-trader/internal/config"
	"cycle-trader/internal/feature"
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client 封装 OpenAI 价格预测调用。
type Client struct {
	cfg    config.OpenAIConfig
	logger *zap.Logger
	sdk    chatCompleter
}

// NewClient 使用给定配置创建 AI 客户端。
func NewClient(cfg config.OpenAIConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai: openai api_key 不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	sdkConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		sdkConfig.BaseURL = cfg.BaseURL
	}
	sdkConfig.HTTPClient = &http.Client{
		Timeout: cfg.Timeout + 5*time.Second,
	}

	return newClientWithSDK(cfg, openai.NewClientWithConfig(sdkConfig), logger), nil
}

func newClientWithSDK(cfg config.OpenAIConfig, sdk chatCompleter, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		sdk:    sdk,
	}
}

// Forecast 请求模型预测未来 steps 个周期的价格。
func (c *Client) Forecast(ctx context.Context, pair string, series []float64, steps int) ([]float64, error) {
	if c.cfg.Model == "" {
		return nil, errors.New("ai: openai model 不能为空")
	}
	if steps < 1 {
		return nil, fmt.Errorf("ai: steps 必须大于0: %d", steps)
	}

	summary, err := feature.Summarize(pair, series)
	if err != nil {
		return nil, fmt.Errorf("ai: %w", err)
	}
	prompt, err := BuildPrompt(summary, steps)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	response, err := c.sdk.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0,
	})
	if err != nil {
		c.logger.Error("调用OpenAI失败", zap.String("pair", pair), zap.Error(err))
		return nil, fmt.Errorf("ai: 调用OpenAI失败: %w", err)
	}

	if len(response.Choices) == 0 {
		return nil, errors.New("ai: OpenAI 返回结果为空")
	}

	rawContent := strings.TrimSpace(response.Choices[0].Message.Content)
	if rawContent == "" {
		return nil, errors.New("ai: OpenAI 返回内容为空")
	}

	result, err := parseForecast(rawContent)
	if err != nil {
		c.logger.Error("解析模型预测失败",
			zap.String("pair", pair),
			zap.Error(err),
			zap.String("raw_content", rawContent),
		)
		return nil, err
	}

	if err := result.Validate(steps); err != nil {
		return nil, err
	}

	c.logger.Debug("AI 预测生成成功",
		zap.String("pair", pair),
		zap.Float64s("predictions", result.Predictions[:steps]),
		zap.Float64("confidence", result.Confidence),
	)

	return result.Predictions[:steps], nil
}

func parseForecast(content string) (ForecastResult, error) {
	jsonPayload, err := extractJSON(content)
	if err != nil {
		return ForecastResult{}, err
	}

	var result ForecastResult
	if err = json.Unmarshal(jsonPayload, &result); err != nil {
		return ForecastResult{}, fmt.Errorf("ai: 解析预测JSON失败: %w", err)
	}

	return result, nil
}

func extractJSON(content string) ([]byte, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")

	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("ai: 模型输出未找到有效JSON: %s", content)
	}

	return []byte(content[start : end+1]), nil
}
