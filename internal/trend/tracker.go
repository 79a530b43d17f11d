package trend

import (
	"fmt"

	"rsi-trends/internal/indicator"
)

// TrackEpisodes 为每个穿越位置生成一段趋势，顺序与 crossings 一致。
//
// 从穿越位置 c 开始逐根向后扫描，只要指标沿 dir 严格延续就把终点推进到当前位置；
// 首次不再延续或序列结束时停止。若 c 之后指标立即反转（或 c 已是最后一根），
// 得到 CandleCount 为 0 的退化趋势。位置只按下标追踪，指标值可以重复。
func TrackEpisodes(series indicator.Series, osc []float64, crossings []int, dir Direction) ([]Episode, error) {
	n := series.Len()
	if len(osc) != n {
		return nil, fmt.Errorf("trend: 指标长度 %d 与K线长度 %d 不一致", len(osc), n)
	}

	episodes := make([]Episode, 0, len(crossings))
	for _, c := range crossings {
		if c < 0 || c >= n {
			return nil, fmt.Errorf("trend: 穿越位置 %d 超出范围 [0,%d)", c, n)
		}
		episodes = append(episodes, track(series, osc, c, dir))
	}

	return episodes, nil
}

func track(series indicator.Series, osc []float64, c int, dir Direction) Episode {
	episode := Episode{
		Direction:  dir,
		StartIndex: c,
		EndIndex:   c,
		StartTime:  series.Timestamps[c],
		EndTime:    series.Timestamps[c],
	}

	startClose := series.Close[c]
	prev := osc[c]
	for j := c + 1; j < len(osc); j++ {
		if !dir.continues(prev, osc[j]) {
			break
		}
		priceChange := series.Close[j] - startClose

		episode.EndIndex = j
		episode.EndTime = series.Timestamps[j]
		episode.CandleCount = j - c
		episode.PriceChange = priceChange
		episode.PercentageChange = indicator.SafeDivide(priceChange, startClose) * 100

		prev = osc[j]
	}

	return episode
}
