package params

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
)

// Parameters 为单个周期的交易参数。
type Parameters struct {
	Budget               float64        `mapstructure:"budget" json:"budget" validate:"gte=0"`
	Pairs                []string       `mapstructure:"pairs" json:"pairs" validate:"min=1,unique,dive,pair"`
	Risk                 int            `mapstructure:"risk" json:"risk"`
	Window               map[string]int `mapstructure:"window" json:"window" validate:"window"`
	Period               int            `mapstructure:"period" json:"period" validate:"oneof=300 900 1800 7200 14400 86400"`
	Steps                int            `mapstructure:"steps" json:"steps" validate:"gte=1"`
	TopN                 int            `mapstructure:"top_n" json:"top_n" validate:"gte=1"`
	CommonCurrency       string         `mapstructure:"common_currency" json:"common_currency" validate:"required"`
	Threshold            float64        `mapstructure:"THRESHOLD" json:"THRESHOLD" validate:"gte=0"`
	CurrentPriceBuyFrom  string         `mapstructure:"current_price_buy_from" json:"current_price_buy_from" validate:"required"`
	CurrentPriceSellFrom string         `mapstructure:"current_price_sell_from" json:"current_price_sell_from" validate:"required"`
	LearnOn              string         `mapstructure:"learn_on" json:"learn_on" validate:"oneof=open high low close volume quoteVolume weightedAverage"`
	Reopen               bool           `mapstructure:"reopen" json:"reopen"`
	Hyperparameters      map[string]any `mapstructure:"hyperparameters" json:"hyperparameters"`
	Algorithm            string         `mapstructure:"algorithm" json:"algorithm" validate:"required"`
}

// 缺失即视为配置错误的字段。
var requiredKeys = []string{
	"budget", "pairs", "risk", "window", "period", "steps", "top_n",
	"common_currency", "current_price_buy_from", "current_price_sell_from",
	"learn_on", "algorithm",
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("pair", validatePair); err != nil {
		panic(fmt.Sprintf("params: 注册 pair 校验失败: %v", err))
	}
	if err := validate.RegisterValidation("window", validateWindow); err != nil {
		panic(fmt.Sprintf("params: 注册 window 校验失败: %v", err))
	}
}

// ConfigurationError 表示周期参数缺失或格式错误。
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("params: 周期参数非法: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Parse 将嵌套映射解析为 Parameters 并完成校验。
func Parse(raw map[string]any) (Parameters, error) {
	if len(raw) == 0 {
		return Parameters{}, &ConfigurationError{Err: errors.New("参数为空")}
	}

	var (
		out Parameters
		md  mapstructure.Metadata
	)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		Metadata:         &md,
		Result:           &out,
	})
	if err != nil {
		return Parameters{}, &ConfigurationError{Err: err}
	}
	if err := decoder.Decode(raw); err != nil {
		return Parameters{}, &ConfigurationError{Err: err}
	}

	var errs error
	unset := make(map[string]struct{}, len(md.Unset))
	for _, key := range md.Unset {
		unset[strings.ToLower(key)] = struct{}{}
	}
	for _, key := range requiredKeys {
		if _, missing := unset[key]; missing {
			errs = multierr.Append(errs, fmt.Errorf("缺少字段 %s", key))
		}
	}
	if errs != nil {
		return Parameters{}, &ConfigurationError{Err: errs}
	}

	out.normalize()

	if err := out.Validate(); err != nil {
		return Parameters{}, err
	}
	return out, nil
}

// Validate 执行字段级校验，错误统一包装为 *ConfigurationError。
func (p Parameters) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ConfigurationError{Err: err}
	}

	var errs error
	for _, fe := range verrs {
		errs = multierr.Append(errs, fmt.Errorf("字段 %s 不满足规则 %s (值: %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return &ConfigurationError{Err: errs}
}

func (p *Parameters) normalize() {
	for i, pair := range p.Pairs {
		p.Pairs[i] = strings.ToUpper(strings.TrimSpace(pair))
	}
	p.CommonCurrency = strings.ToUpper(strings.TrimSpace(p.CommonCurrency))
	p.Algorithm = strings.ToUpper(strings.TrimSpace(p.Algorithm))
	p.LearnOn = canonicalLearnOn(p.LearnOn)

	window := make(map[string]int, len(p.Window))
	for unit, amount := range p.Window {
		window[strings.ToUpper(strings.TrimSpace(unit))] = amount
	}
	p.Window = window

	if p.Hyperparameters == nil {
		p.Hyperparameters = map[string]any{}
	}
}

// 配置经 viper 读取后键名会被转为小写，这里恢复驼峰写法
func canonicalLearnOn(field string) string {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "quotevolume":
		return "quoteVolume"
	case "weightedaverage":
		return "weightedAverage"
	default:
		return strings.ToLower(strings.TrimSpace(field))
	}
}

func validatePair(fl validator.FieldLevel) bool {
	parts := strings.Split(fl.Field().String(), "_")
	return len(parts) == 2 && parts[0] != "" && parts[1] != ""
}

// 窗口必须且只能包含一个单位，且数量为正；未知单位在解析窗口时回退为默认值。
func validateWindow(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.Map || field.Len() != 1 {
		return false
	}
	iter := field.MapRange()
	for iter.Next() {
		if iter.Value().Int() <= 0 {
			return false
		}
	}
	return true
}

// Merge 以 override 中的顶层键覆盖 base，返回新的映射。
func Merge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[strings.ToLower(k)] = v
	}
	for k, v := range override {
		out[strings.ToLower(k)] = v
	}
	return out
}
