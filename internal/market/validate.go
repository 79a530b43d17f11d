package market

import (
	"fmt"
	"math"
)

// Validate 检查K线序列：收盘价必须为正的有限数值，时间戳必须严格递增。
func Validate(source string, candles []Candle) error {
	for i, candle := range candles {
		if math.IsNaN(candle.Close) || math.IsInf(candle.Close, 0) {
			return &DataIntegrityError{Source: source, Field: "close", Reason: fmt.Sprintf("第%d根K线收盘价非有限数值", i+1)}
		}
		if candle.Close <= 0 {
			return &DataIntegrityError{Source: source, Field: "close", Reason: fmt.Sprintf("第%d根K线收盘价必须为正，当前 %v", i+1, candle.Close)}
		}
		if i > 0 && !candle.Timestamp.After(candles[i-1].Timestamp) {
			return &DataIntegrityError{
				Source: source,
				Field:  "timestamp",
				Reason: fmt.Sprintf("第%d根K线时间 %s 未晚于前一根 %s", i+1,
					candle.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
					candles[i-1].Timestamp.UTC().Format("2006-01-02T15:04:05Z")),
			}
		}
	}
	return nil
}
