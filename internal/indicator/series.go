package indicator

import (
	"time"

	"rsi-trends/internal/market"
)

// Series 将K线数据拆分为便于指标计算的序列。
type Series struct {
	Timestamps []time.Time
	Open       []float64
	High       []float64
	Low        []float64
	Close      []float64
	Volume     []float64
}

// NewSeries 从K线创建 Series，保持输入的时间升序。
func NewSeries(candles []market.Candle) Series {
	length := len(candles)
	series := Series{
		Timestamps: make([]time.Time, length),
		Open:       make([]float64, length),
		High:       make([]float64, length),
		Low:        make([]float64, length),
		Close:      make([]float64, length),
		Volume:     make([]float64, length),
	}

	for i := 0; i < length; i++ {
		candle := candles[i]
		series.Timestamps[i] = candle.Timestamp.UTC()
		series.Open[i] = candle.Open
		series.High[i] = candle.High
		series.Low[i] = candle.Low
		series.Close[i] = candle.Close
		series.Volume[i] = candle.Volume
	}

	return series
}

// Len 返回序列长度。
func (s Series) Len() int {
	return len(s.Close)
}

// Tail 返回最近 n 根K线组成的窗口，不足 n 根时返回全部。
// 返回的切片与原序列共享底层数组，调用方不应修改。
func (s Series) Tail(n int) Series {
	length := s.Len()
	if n <= 0 || n >= length {
		return s
	}
	start := length - n
	return Series{
		Timestamps: s.Timestamps[start:],
		Open:       s.Open[start:],
		High:       s.High[start:],
		Low:        s.Low[start:],
		Close:      s.Close[start:],
		Volume:     s.Volume[start:],
	}
}

// SafeDivide 除法保护，除数为0时返回0。
func SafeDivide(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
