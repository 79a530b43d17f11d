package market

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"rsi-trends/internal/config"
)

// 单次 FetchOHLCV 请求的最大K线数量。
const pageLimit = 1000

type ohlcvFetcher interface {
	FetchOHLCV(symbol string, options ...ccxt.FetchOHLCVOptions) ([]ccxt.OHLCV, error)
}

// Client 负责与交易所交互并实现重试机制。
type Client struct {
	cfg         config.ExchangeConfig
	logger      *zap.Logger
	exchange    ohlcvFetcher
	loadMarkets func() error
	symbol      string
	now         func() time.Time

	marketsMu     sync.Mutex
	marketsLoaded bool
}

// NewClient 构造 Binance USDⓈ-M 客户端。
func NewClient(cfg config.ExchangeConfig, logger *zap.Logger) (*Client, error) {
	if cfg.Market == "" {
		return nil, errors.New("market: exchange.market 不能为空")
	}

	userConfig := map[string]interface{}{
		"enableRateLimit": true,
		"options": map[string]interface{}{
			"adjustForTimeDifference": true,
			"defaultType":             "future",
		},
	}

	if cfg.APIKey != "" {
		userConfig["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		userConfig["secret"] = cfg.APISecret
	}

	ex := ccxt.NewBinanceusdm(userConfig)
	if cfg.UseSandbox {
		ex.SetSandboxMode(true)
	}

	return newClient(cfg, ex, func() error {
		_, err := ex.LoadMarkets()
		return err
	}, logger), nil
}

func newClient(cfg config.ExchangeConfig, fetcher ohlcvFetcher, loadMarkets func() error, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loadMarkets == nil {
		loadMarkets = func() error { return nil }
	}
	return &Client{
		cfg:         cfg,
		logger:      logger,
		exchange:    fetcher,
		loadMarkets: loadMarkets,
		symbol:      cfg.Market,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Symbol 返回交易对符号。
func (c *Client) Symbol() string {
	return c.symbol
}

// FetchCandles 获取从 since 开始的一页K线数据。
func (c *Client) FetchCandles(ctx context.Context, timeframe string, since time.Time, limit int64) ([]Candle, error) {
	if limit <= 0 {
		limit = 1
	}

	var raw []ccxt.OHLCV

	err := c.callWithRetry(ctx, fmt.Sprintf("fetch_ohlcv_%s", timeframe), func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}

		result, err := c.exchange.FetchOHLCV(
			c.symbol,
			ccxt.WithFetchOHLCVTimeframe(timeframe),
			ccxt.WithFetchOHLCVSince(since.UnixMilli()),
			ccxt.WithFetchOHLCVLimit(limit),
		)
		if err != nil {
			return err
		}

		raw = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	candles := make([]Candle, 0, len(raw))
	for _, item := range raw {
		candles = append(candles, Candle{
			Timestamp: time.UnixMilli(item.Timestamp).UTC(),
			Open:      item.Open,
			High:      item.High,
			Low:       item.Low,
			Close:     item.Close,
			Volume:    item.Volume,
		})
	}

	return candles, nil
}

// FetchHistory 分页拉取最近 total 根K线，结果去重并按时间升序排列。
func (c *Client) FetchHistory(ctx context.Context, timeframe string, total int) ([]Candle, error) {
	if total <= 0 {
		return nil, nil
	}

	interval, err := ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}

	now := c.now()
	since := now.Add(-time.Duration(total) * interval)
	byTime := make(map[int64]Candle, total)

	for pages := 0; len(byTime) < total; pages++ {
		remaining := total - len(byTime)
		limit := int64(pageLimit)
		if remaining < pageLimit {
			limit = int64(remaining)
		}

		page, err := c.FetchCandles(ctx, timeframe, since, limit)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		last := since
		for _, candle := range page {
			byTime[candle.Timestamp.UnixMilli()] = candle
			if candle.Timestamp.After(last) {
				last = candle.Timestamp
			}
		}

		c.logger.Debug("K线分页拉取完成",
			zap.String("symbol", c.symbol),
			zap.Int("page", pages+1),
			zap.Int("page_size", len(page)),
			zap.Int("collected", len(byTime)),
		)

		next := last.Add(interval)
		if !next.After(since) || !next.Before(now) {
			break
		}
		since = next
	}

	candles := make([]Candle, 0, len(byTime))
	for _, candle := range byTime {
		candles = append(candles, candle)
	}
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	if len(candles) > total {
		candles = candles[len(candles)-total:]
	}

	return candles, nil
}

// ParseTimeframe 将 15m、1h、1d、1w 等周期字符串转换为时长。
func ParseTimeframe(timeframe string) (time.Duration, error) {
	tf := strings.TrimSpace(timeframe)
	if len(tf) < 2 {
		return 0, fmt.Errorf("market: 无法解析周期 %q", timeframe)
	}

	amount, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || amount <= 0 {
		return 0, fmt.Errorf("market: 无法解析周期 %q", timeframe)
	}

	var unit time.Duration
	switch tf[len(tf)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("market: 不支持的周期单位 %q", timeframe)
	}

	return time.Duration(amount) * unit, nil
}

func (c *Client) ensureMarketsLoaded(ctx context.Context) error {
	c.marketsMu.Lock()
	defer c.marketsMu.Unlock()

	if c.marketsLoaded {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.loadMarkets(); err != nil {
		return err
	}

	c.marketsLoaded = true
	c.logger.Info("已完成市场元数据加载", zap.String("symbol", c.symbol))
	return nil
}

func (c *Client) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	delay := c.cfg.Retry.MinDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := c.cfg.Retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	maxAttempts := c.cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attempt++
		start := time.Now()
		err := fn()
		duration := time.Since(start)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("交易所调用重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", duration),
				)
			}
			return nil
		}

		normalizedErr, retry := c.classifyError(err)

		if errors.Is(normalizedErr, ErrMaintenance) {
			c.logger.Warn("交易所维护中",
				zap.String("operation", operation),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		if !retry || attempt >= maxAttempts {
			c.logger.Error("交易所调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", duration),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		wait := delay
		if wait > maxDelay {
			wait = maxDelay
		}

		c.logger.Warn("交易所调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(normalizedErr),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func (c *Client) classifyError(err error) (error, bool) {
	if err == nil {
		return nil, false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		if ccxtErr.Type == ccxt.OnMaintenanceErrType {
			message := strings.TrimSpace(ccxtErr.Message)
			if message == "" {
				message = "exchange under maintenance"
			}
			return fmt.Errorf("%w: %s", ErrMaintenance, message), false
		}
		return err, IsRetryable(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return err, true
	}

	return err, false
}

// ExchangeSource 以交易所历史K线作为数据来源。
type ExchangeSource struct {
	client    *Client
	timeframe string
	total     int
}

// NewExchangeSource 创建 ExchangeSource，total 为需要的K线根数。
func NewExchangeSource(client *Client, timeframe string, total int) *ExchangeSource {
	if timeframe == "" {
		timeframe = Timeframe15m
	}
	return &ExchangeSource{client: client, timeframe: timeframe, total: total}
}

// Name 返回数据来源描述。
func (s *ExchangeSource) Name() string {
	return fmt.Sprintf("exchange:%s@%s", s.client.Symbol(), s.timeframe)
}

// Candles 拉取并校验历史K线。
func (s *ExchangeSource) Candles(ctx context.Context) ([]Candle, error) {
	candles, err := s.client.FetchHistory(ctx, s.timeframe, s.total)
	if err != nil {
		return nil, fmt.Errorf("market: 拉取历史K线失败: %w", err)
	}
	if err := Validate(s.Name(), candles); err != nil {
		return nil, err
	}
	return candles, nil
}
