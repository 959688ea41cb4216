package exchange

import (
	"errors"
	"fmt"

	ccxt "github.com/ccxt/ccxt/go/v4"
)

var (
	// ErrMaintenance 表示交易所处于维护状态，需要上层跳过交易。
	ErrMaintenance = errors.New("exchange on maintenance")
	// ErrUnknownField 表示请求的行情或K线字段不存在。
	ErrUnknownField = errors.New("exchange: unknown field")
)

// ReadError 表示账户快照读取失败，周期必须中止。
type ReadError struct {
	Resource string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("exchange: 读取 %s 失败: %v", e.Resource, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// IsRetryable 判断错误是否可重试。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		switch ccxtErr.Type {
		case ccxt.NetworkErrorErrType,
			ccxt.RequestTimeoutErrType,
			ccxt.ExchangeNotAvailableErrType,
			ccxt.RateLimitExceededErrType,
			ccxt.DDoSProtectionErrType,
			ccxt.BadResponseErrType,
			ccxt.NullResponseErrType:
			return true
		default:
			return false
		}
	}

	return false
}
