package market

import (
	"context"
	"errors"
	"testing"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"

	"rsi-trends/internal/config"
)

type mockFetcher struct {
	pages [][]ccxt.OHLCV
	errs  []error
	calls int
}

func (m *mockFetcher) FetchOHLCV(symbol string, options ...ccxt.FetchOHLCVOptions) ([]ccxt.OHLCV, error) {
	call := m.calls
	m.calls++
	if call < len(m.errs) && m.errs[call] != nil {
		return nil, m.errs[call]
	}
	if len(m.pages) == 0 {
		return nil, nil
	}
	page := m.pages[0]
	m.pages = m.pages[1:]
	return page, nil
}

func testExchangeConfig() config.ExchangeConfig {
	return config.ExchangeConfig{
		Name:      "binanceusdm",
		Market:    "BTC/USDT:USDT",
		Timeframe: Timeframe15m,
		Retry: config.RetryConfig{
			MaxAttempts: 3,
			MinDelay:    time.Millisecond,
			MaxDelay:    2 * time.Millisecond,
		},
	}
}

func bar(ts time.Time, closePrice float64) ccxt.OHLCV {
	return ccxt.OHLCV{Timestamp: ts.UnixMilli(), Open: closePrice, High: closePrice, Low: closePrice, Close: closePrice}
}

func TestClientFetchHistory_PagesAndDeduplicates(t *testing.T) {
	interval := 15 * time.Minute
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	since := now.Add(-5 * interval)

	fetcher := &mockFetcher{pages: [][]ccxt.OHLCV{
		{bar(since, 1), bar(since.Add(interval), 2), bar(since.Add(2*interval), 3)},
		{bar(since.Add(2*interval), 3), bar(since.Add(3*interval), 4), bar(since.Add(4*interval), 5)},
	}}

	loads := 0
	client := newClient(testExchangeConfig(), fetcher, func() error { loads++; return nil }, nil)
	client.now = func() time.Time { return now }

	candles, err := client.FetchHistory(context.Background(), Timeframe15m, 5)
	if err != nil {
		t.Fatalf("FetchHistory returned error: %v", err)
	}
	if len(candles) != 5 {
		t.Fatalf("expected 5 candles, got %d", len(candles))
	}
	for i, candle := range candles {
		if candle.Close != float64(i+1) {
			t.Errorf("candle %d out of order: close=%v", i, candle.Close)
		}
	}
	if fetcher.calls != 2 {
		t.Errorf("expected 2 page requests, got %d", fetcher.calls)
	}
	if loads != 1 {
		t.Errorf("expected markets loaded once, got %d", loads)
	}
}

func TestClientFetchHistory_StopsOnEmptyPage(t *testing.T) {
	client := newClient(testExchangeConfig(), &mockFetcher{}, nil, nil)

	candles, err := client.FetchHistory(context.Background(), Timeframe15m, 10)
	if err != nil {
		t.Fatalf("FetchHistory returned error: %v", err)
	}
	if len(candles) != 0 {
		t.Fatalf("expected no candles, got %d", len(candles))
	}
}

func TestClientFetchCandles_RetriesNetworkErrors(t *testing.T) {
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	fetcher := &mockFetcher{
		errs:  []error{&ccxt.Error{Type: ccxt.NetworkErrorErrType, Message: "reset"}},
		pages: [][]ccxt.OHLCV{{bar(now, 42)}},
	}
	client := newClient(testExchangeConfig(), fetcher, nil, nil)

	candles, err := client.FetchCandles(context.Background(), Timeframe15m, now, 1)
	if err != nil {
		t.Fatalf("FetchCandles returned error: %v", err)
	}
	if len(candles) != 1 || candles[0].Close != 42 {
		t.Fatalf("unexpected candles: %+v", candles)
	}
	if fetcher.calls != 2 {
		t.Errorf("expected one retry, got %d calls", fetcher.calls)
	}
}

func TestClientFetchCandles_Maintenance(t *testing.T) {
	fetcher := &mockFetcher{
		errs: []error{&ccxt.Error{Type: ccxt.OnMaintenanceErrType, Message: "upgrade"}},
	}
	client := newClient(testExchangeConfig(), fetcher, nil, nil)

	_, err := client.FetchCandles(context.Background(), Timeframe15m, time.Now(), 1)
	if !errors.Is(err, ErrMaintenance) {
		t.Fatalf("expected ErrMaintenance, got %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("maintenance must not be retried, got %d calls", fetcher.calls)
	}
}

func TestParseTimeframe(t *testing.T) {
	tests := map[string]time.Duration{
		"15m": 15 * time.Minute,
		"1h":  time.Hour,
		"4h":  4 * time.Hour,
		"1d":  24 * time.Hour,
		"1w":  7 * 24 * time.Hour,
	}
	for give, want := range tests {
		got, err := ParseTimeframe(give)
		if err != nil {
			t.Fatalf("ParseTimeframe(%q) returned error: %v", give, err)
		}
		if got != want {
			t.Errorf("ParseTimeframe(%q) = %s, want %s", give, got, want)
		}
	}

	for _, bad := range []string{"", "m", "0m", "15x"} {
		if _, err := ParseTimeframe(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
