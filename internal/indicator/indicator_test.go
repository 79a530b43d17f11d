package indicator

import (
	"math"
	"testing"
	"time"

	"rsi-trends/internal/market"
)

func TestRSICompute_ShortInputIsUndefined(t *testing.T) {
	for _, n := range []int{0, 1, 14} {
		closes := make([]float64, n)
		for i := range closes {
			closes[i] = float64(100 + i)
		}
		out := RSI{}.Compute(closes, 14)
		if len(out) != n {
			t.Fatalf("expected %d values, got %d", n, len(out))
		}
		for i, v := range out {
			if Defined(v) {
				t.Errorf("n=%d: expected NaN at %d, got %v", n, i, v)
			}
		}
	}
}

func TestRSICompute_AlignmentAndBounds(t *testing.T) {
	closes := []float64{44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10, 45.42, 45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.00, 46.03, 46.41, 46.22, 45.64}
	period := 14

	out := RSI{}.Compute(closes, period)
	if len(out) != len(closes) {
		t.Fatalf("expected aligned output, got %d values", len(out))
	}
	for i := 0; i < period; i++ {
		if Defined(out[i]) {
			t.Errorf("expected NaN at warm-up index %d, got %v", i, out[i])
		}
	}
	for i := period; i < len(out); i++ {
		if !Defined(out[i]) || out[i] < 0 || out[i] > 100 {
			t.Errorf("expected RSI within [0,100] at %d, got %v", i, out[i])
		}
	}
	// 经典 Wilder 示例的第一个 RSI 约为 70.46。
	if math.Abs(out[period]-70.464) > 0.01 {
		t.Errorf("unexpected first RSI value %v", out[period])
	}
}

func TestRSICompute_MonotonicSeries(t *testing.T) {
	rising := make([]float64, 30)
	falling := make([]float64, 30)
	for i := range rising {
		rising[i] = float64(100 + i)
		falling[i] = float64(200 - i)
	}

	up := RSI{}.Compute(rising, 14)
	down := RSI{}.Compute(falling, 14)
	for i := 14; i < 30; i++ {
		if up[i] != 100 {
			t.Errorf("rising series: expected 100 at %d, got %v", i, up[i])
		}
		if down[i] != 0 {
			t.Errorf("falling series: expected 0 at %d, got %v", i, down[i])
		}
	}
}

func TestSeriesTail(t *testing.T) {
	base := time.Unix(1609459200, 0).UTC()
	candles := make([]market.Candle, 5)
	for i := range candles {
		candles[i] = market.Candle{Timestamp: base.Add(time.Duration(i) * time.Minute), Close: float64(i + 1)}
	}
	series := NewSeries(candles)

	window := series.Tail(3)
	if window.Len() != 3 {
		t.Fatalf("expected 3 candles, got %d", window.Len())
	}
	if window.Close[0] != 3 || !window.Timestamps[0].Equal(candles[2].Timestamp) {
		t.Errorf("unexpected window start: close=%v ts=%s", window.Close[0], window.Timestamps[0])
	}

	if series.Tail(10).Len() != 5 {
		t.Errorf("expected whole series when window exceeds length")
	}
	if series.Tail(0).Len() != 5 {
		t.Errorf("expected whole series for non-positive window")
	}
}

func TestSafeDivide(t *testing.T) {
	if SafeDivide(1, 0) != 0 {
		t.Errorf("expected 0 when dividing by zero")
	}
	if SafeDivide(-10, 80) != -0.125 {
		t.Errorf("unexpected quotient")
	}
}
