package trend

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rsi-trends/internal/config"
	"rsi-trends/internal/indicator"
	"rsi-trends/internal/market"
)

// Analyzer 串联窗口截取、RSI 计算、阈值穿越检测与趋势追踪。
type Analyzer struct {
	cfg        config.AnalysisConfig
	oscillator indicator.Oscillator
	logger     *zap.Logger
}

// NewAnalyzer 创建 Analyzer，oscillator 为空时使用 RSI。
func NewAnalyzer(cfg config.AnalysisConfig, oscillator indicator.Oscillator, logger *zap.Logger) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("trend: 分析参数无效: %w", err)
	}
	if oscillator == nil {
		oscillator = indicator.RSI{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		cfg:        cfg,
		oscillator: oscillator,
		logger:     logger,
	}, nil
}

// Analyze 在最近 window_size 根K线上计算两个方向的趋势集合。
func (a *Analyzer) Analyze(ctx context.Context, candles []market.Candle) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	if len(candles) < a.cfg.WindowSize {
		a.logger.Debug("K线数量不足窗口大小，使用全部K线",
			zap.Int("candles", len(candles)),
			zap.Int("window_size", a.cfg.WindowSize),
		)
	}

	series := indicator.NewSeries(candles).Tail(a.cfg.WindowSize)
	osc := a.oscillator.Compute(series.Close, a.cfg.Period)

	report, err := a.analyzeSeries(ctx, series, osc)
	if err != nil {
		return Report{}, err
	}

	a.logger.Debug("趋势分析完成",
		zap.Int("candles", report.Window.Candles),
		zap.Int("down_trends", len(report.Down)),
		zap.Int("up_trends", len(report.Up)),
	)

	return report, nil
}

func (a *Analyzer) analyzeSeries(ctx context.Context, series indicator.Series, osc []float64) (Report, error) {
	report := Report{Window: Window{Candles: series.Len()}}
	if series.Len() > 0 {
		report.Window.StartTime = series.Timestamps[0]
		report.Window.EndTime = series.Timestamps[series.Len()-1]
	}

	// 两个方向互不共享可变状态，各自写入独立的结果槽。
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		episodes, err := a.segment(groupCtx, series, osc, a.cfg.DownThreshold, Down)
		if err != nil {
			return err
		}
		report.Down = episodes
		return nil
	})

	group.Go(func() error {
		episodes, err := a.segment(groupCtx, series, osc, a.cfg.UpThreshold, Up)
		if err != nil {
			return err
		}
		report.Up = episodes
		return nil
	})

	if err := group.Wait(); err != nil {
		return Report{}, err
	}

	return report, nil
}

func (a *Analyzer) segment(ctx context.Context, series indicator.Series, osc []float64, threshold float64, dir Direction) ([]Episode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	crossings := DetectCrossings(osc, threshold, dir)
	episodes, err := TrackEpisodes(series, osc, crossings, dir)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("阈值穿越检测完成",
		zap.String("direction", string(dir)),
		zap.Float64("threshold", threshold),
		zap.Int("crossings", len(crossings)),
	)

	return episodes, nil
}
