package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"rsi-trends/internal/archive"
	"rsi-trends/internal/config"
	"rsi-trends/internal/indicator"
	"rsi-trends/internal/market"
	"rsi-trends/internal/narrator"
	"rsi-trends/internal/report"
	"rsi-trends/internal/store"
	"rsi-trends/internal/trend"
)

// App 聚合核心依赖并驱动一次分析。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
	stdout io.Writer
	source market.Source

	mu      sync.RWMutex
	latest  trend.Report
	archive *archive.Service
}

// Option 调整 App 的可选依赖。
type Option func(*App)

// WithSource 指定K线来源，覆盖配置。
func WithSource(source market.Source) Option {
	return func(a *App) {
		a.source = source
	}
}

// WithStdout 指定 report.output=stdout 时的输出目标。
func WithStdout(w io.Writer) Option {
	return func(a *App) {
		a.stdout = w
	}
}

// New 创建 App 实例，store 为空时不归档。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store, opts ...Option) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
		stdout: os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run 执行一次分析并输出结果，serve 为真时随后提供查询接口直至 ctx 结束。
func (a *App) Run(ctx context.Context, serve bool) error {
	source, err := a.buildSource()
	if err != nil {
		return err
	}

	a.logger.Info("开始趋势分析",
		zap.String("source", source.Name()),
		zap.Float64("down_threshold", a.cfg.Analysis.DownThreshold),
		zap.Float64("up_threshold", a.cfg.Analysis.UpThreshold),
		zap.Int("period", a.cfg.Analysis.Period),
		zap.Int("window_size", a.cfg.Analysis.WindowSize),
	)

	candles, err := source.Candles(ctx)
	if err != nil {
		return fmt.Errorf("读取K线失败: %w", err)
	}

	analyzer, err := trend.NewAnalyzer(a.cfg.Analysis, indicator.RSI{}, a.logger)
	if err != nil {
		return err
	}

	result, err := analyzer.Analyze(ctx, candles)
	if err != nil {
		return fmt.Errorf("趋势分析失败: %w", err)
	}

	a.mu.Lock()
	a.latest = result
	a.mu.Unlock()

	narrative := a.narrate(ctx, result)

	if err := a.writeReport(result, narrative); err != nil {
		return err
	}

	if a.store != nil {
		svc, err := archive.NewService(a.store, a.logger)
		if err != nil {
			return err
		}
		if _, err := svc.SaveRun(ctx, archive.RunMeta{Source: source.Name(), Analysis: a.cfg.Analysis}, result); err != nil {
			return err
		}
		a.mu.Lock()
		a.archive = svc
		a.mu.Unlock()
	}

	if !serve && !a.cfg.Server.Enabled {
		return nil
	}

	return serveHTTP(ctx, a.cfg.Server.Addr, newHandler(a, a.logger), a.logger)
}

// Latest 返回最近一次分析结果。
func (a *App) Latest() trend.Report {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest
}

// Archive 返回归档服务，未启用时为 nil。
func (a *App) Archive() *archive.Service {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.archive
}

func (a *App) buildSource() (market.Source, error) {
	if a.source != nil {
		return a.source, nil
	}

	switch a.cfg.Source.Kind {
	case config.SourceCSV:
		return market.NewCSVSource(a.cfg.Source.Path, a.logger), nil
	case config.SourceExchange:
		client, err := market.NewClient(a.cfg.Exchange, a.logger)
		if err != nil {
			return nil, err
		}
		return market.NewExchangeSource(client, a.cfg.Exchange.Timeframe, a.cfg.Analysis.WindowSize), nil
	default:
		return nil, fmt.Errorf("不支持的数据来源 %q", a.cfg.Source.Kind)
	}
}

// narrate 摘要失败不影响主流程。
func (a *App) narrate(ctx context.Context, result trend.Report) string {
	if !a.cfg.Narrator.Enabled {
		return ""
	}

	client, err := narrator.NewClient(a.cfg.Narrator, a.logger)
	if err != nil {
		a.logger.Warn("初始化摘要客户端失败", zap.Error(err))
		return ""
	}

	text, err := client.Summarize(ctx, result)
	if err != nil {
		a.logger.Warn("生成趋势摘要失败", zap.Error(err))
		return ""
	}
	return text
}

func (a *App) writeReport(result trend.Report, narrative string) (err error) {
	writer, err := report.NewWriter(a.cfg.Report)
	if err != nil {
		return err
	}

	out := a.stdout
	if a.cfg.Report.Output != "" && a.cfg.Report.Output != "stdout" {
		file, createErr := os.Create(a.cfg.Report.Output)
		if createErr != nil {
			return fmt.Errorf("创建输出文件失败: %w", createErr)
		}
		defer func() {
			err = multierr.Append(err, file.Close())
		}()
		out = file
	}

	if err := writer.Write(out, result); err != nil {
		return err
	}

	if narrative == "" {
		return nil
	}
	// JSON 输出需保持可解析，摘要只记入日志。
	if a.cfg.Report.Format == config.FormatJSON {
		a.logger.Info("趋势摘要", zap.String("narrative", narrative))
		return nil
	}
	if _, err := fmt.Fprintf(out, "Narrative:\n%s\n", narrative); err != nil {
		return fmt.Errorf("写入摘要失败: %w", err)
	}
	return nil
}
