package trend

import (
	"fmt"
	"time"
)

// Direction 表示趋势方向。
type Direction string

const (
	// Down 由 RSI 跌破上阈值触发的下跌趋势。
	Down Direction = "down"
	// Up 由 RSI 突破下阈值触发的上涨趋势。
	Up Direction = "up"
)

// ParseDirection 解析 up/down 字符串。
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Down, Up:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("trend: 未知方向 %q", s)
	}
}

// continues 判断指标从 prev 到 next 是否沿方向严格延续，NaN 一律视为中断。
func (d Direction) continues(prev, next float64) bool {
	switch d {
	case Down:
		return next < prev
	case Up:
		return next > prev
	default:
		return false
	}
}

// Episode 描述一段由阈值穿越触发的趋势。
type Episode struct {
	Direction        Direction `json:"direction"`
	StartIndex       int       `json:"start_index"`
	EndIndex         int       `json:"end_index"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	CandleCount      int       `json:"number_of_candles"`
	PriceChange      float64   `json:"price_change"`
	PercentageChange float64   `json:"percentage"`
}

// Degenerate 表示穿越后指标立即反转，趋势未延续。
func (e Episode) Degenerate() bool {
	return e.CandleCount == 0
}

// Window 描述参与计算的K线窗口。
type Window struct {
	Candles   int       `json:"candles"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Report 为一次分析的结果，Down 与 Up 均按触发位置升序排列。
type Report struct {
	Window Window    `json:"window"`
	Down   []Episode `json:"down_trends"`
	Up     []Episode `json:"up_trends"`
}

// Episodes 返回指定方向的趋势集合。
func (r Report) Episodes(dir Direction) []Episode {
	if dir == Up {
		return r.Up
	}
	return r.Down
}
