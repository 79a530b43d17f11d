package report

import (
	"fmt"

	"rsi-trends/internal/trend"
)

// Summary 汇总同一方向的趋势统计。
type Summary struct {
	Count             int     `json:"count"`
	Continued         int     `json:"continued"`
	AverageCandles    float64 `json:"average_candles"`
	AveragePercentage float64 `json:"average_percentage"`
	MaxCandles        int     `json:"max_candles"`
}

// Summarize 计算趋势集合的统计摘要，平均值只统计延续的趋势。
func Summarize(episodes []trend.Episode) Summary {
	summary := Summary{Count: len(episodes)}

	var candles, percentage float64
	for _, e := range episodes {
		if e.Degenerate() {
			continue
		}
		summary.Continued++
		candles += float64(e.CandleCount)
		percentage += e.PercentageChange
		if e.CandleCount > summary.MaxCandles {
			summary.MaxCandles = e.CandleCount
		}
	}

	if summary.Continued > 0 {
		summary.AverageCandles = candles / float64(summary.Continued)
		summary.AveragePercentage = percentage / float64(summary.Continued)
	}

	return summary
}

func (s Summary) String() string {
	return fmt.Sprintf("total=%d continued=%d avg_candles=%.2f avg_percentage=%.4f max_candles=%d",
		s.Count, s.Continued, s.AverageCandles, s.AveragePercentage, s.MaxCandles)
}
