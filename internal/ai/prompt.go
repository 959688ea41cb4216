package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"cycle-trader/internal/feature"
)

const forecastTemplate = `
你是一个专业的加密货币量化分析师。请根据以下等间隔历史价格序列的统计特征，预测交易对 {{ .Pair }} 接下来 {{ .Steps }} 个周期的价格。

序列特征：
{{ .SummaryJSON }}

要求：
1. 每个周期给出一个价格，按时间先后排列，单位与输入序列一致；
2. 预测应基于趋势与波动，不要给出极端值；
3. 不确定时倾向于延续最近价格。

请严格输出唯一的 JSON 对象，格式如下：
{
  "predictions": [price_step_1, ..., price_step_{{ .Steps }}],
  "confidence": 0.0-1.0,
  "reasoning": "..."
}
`

var tmpl = template.Must(template.New("forecast").Parse(forecastTemplate))

// PromptContext 用于渲染提示词。
type PromptContext struct {
	Pair        string
	Steps       int
	SummaryJSON string
}

// BuildPrompt 将序列特征渲染成提示词字符串。
func BuildPrompt(summary feature.SeriesSummary, steps int) (string, error) {
	summaryJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("ai: 序列化特征失败: %w", err)
	}

	ctx := PromptContext{
		Pair:        summary.Pair,
		Steps:       steps,
		SummaryJSON: string(summaryJSON),
	}

	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("ai: 渲染提示词失败: %w", err)
	}

	return buf.String(), nil
}
