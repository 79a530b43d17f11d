package market

import (
	"context"
	"time"
)

// Timeframe15m 为默认分析周期，一年约 35040 根。
const Timeframe15m = "15m"

// Candle 代表单根K线。
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Source 提供按时间升序排列、已校验的历史K线。
type Source interface {
	Name() string
	Candles(ctx context.Context) ([]Candle, error)
}
