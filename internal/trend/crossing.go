package trend

import "rsi-trends/internal/indicator"

// DetectCrossings 返回指标穿越阈值的位置（升序）。
// Down 要求 osc[i-1] >= threshold 且 osc[i] < threshold；
// Up 要求 osc[i-1] <= threshold 且 osc[i] > threshold。任一侧为 NaN 时不标记。
func DetectCrossings(osc []float64, threshold float64, dir Direction) []int {
	var crossings []int
	for i := 1; i < len(osc); i++ {
		prev, cur := osc[i-1], osc[i]
		if !indicator.Defined(prev) || !indicator.Defined(cur) {
			continue
		}

		var crossed bool
		switch dir {
		case Down:
			crossed = prev >= threshold && cur < threshold
		case Up:
			crossed = prev <= threshold && cur > threshold
		}
		if crossed {
			crossings = append(crossings, i)
		}
	}
	return crossings
}
