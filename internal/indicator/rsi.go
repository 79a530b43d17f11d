package indicator

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

// Oscillator 根据收盘价计算与输入等长的震荡指标序列。
// 前 period 个值以及无法计算的位置为 NaN。
type Oscillator interface {
	Compute(closes []float64, period int) []float64
}

// RSI 使用 go-talib 计算 Wilder 平滑的相对强弱指数。
type RSI struct{}

// Compute 实现 Oscillator。
func (RSI) Compute(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))

	// talib.Rsi 至少需要 period+1 个收盘价，否则会越界。
	if period < 2 || len(closes) <= period {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	copy(out, talib.Rsi(closes, period))
	for i := 0; i < period; i++ {
		out[i] = math.NaN()
	}

	return out
}

// Defined 判断指标值是否已产生。
func Defined(v float64) bool {
	return !math.IsNaN(v)
}
