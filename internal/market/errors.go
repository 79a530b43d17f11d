package market

import (
	"errors"
	"fmt"

	ccxt "github.com/ccxt/ccxt/go/v4"
)

var (
	// ErrMaintenance 表示交易所处于维护状态。
	ErrMaintenance = errors.New("exchange on maintenance")
)

// DataIntegrityError 表示输入K线不合法，例如收盘价非数值或时间戳非严格递增。
type DataIntegrityError struct {
	Source string
	Row    int
	Field  string
	Reason string
}

func (e *DataIntegrityError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("数据校验失败 %s 第%d行 %s: %s", e.Source, e.Row, e.Field, e.Reason)
	}
	return fmt.Sprintf("数据校验失败 %s %s: %s", e.Source, e.Field, e.Reason)
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
