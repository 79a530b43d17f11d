package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"rsi-trends/internal/config"
	"rsi-trends/internal/trend"
)

func sampleReport() trend.Report {
	start := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	return trend.Report{
		Window: trend.Window{Candles: 5, StartTime: start, EndTime: start.Add(time.Hour)},
		Down: []trend.Episode{
			{
				Direction: trend.Down, StartIndex: 2, EndIndex: 3,
				StartTime: start.Add(30 * time.Minute), EndTime: start.Add(45 * time.Minute),
				CandleCount: 1, PriceChange: -10, PercentageChange: -12.5,
			},
			{
				Direction: trend.Down, StartIndex: 4, EndIndex: 4,
				StartTime: start.Add(time.Hour), EndTime: start.Add(time.Hour),
			},
		},
	}
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	if got := FormatTime(ts, time.UTC); got != "Mar 05 2024 14:30:00" {
		t.Errorf("unexpected format %q", got)
	}
}

func TestTableWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	writer := &TableWriter{Location: time.UTC}

	if err := writer.Write(&buf, sampleReport()); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	out := buf.String()
	for _, fragment := range []string{
		"Downtrends:",
		"Uptrends:",
		"Mar 05 2024 15:00:00",
		"Mar 05 2024 15:15:00",
		"-10.00",
		"-12.5000",
		"total=2 continued=1",
		"total=0 continued=0",
	} {
		if !strings.Contains(out, fragment) {
			t.Errorf("expected output to contain %q, got:\n%s", fragment, out)
		}
	}
	if strings.Index(out, "Downtrends:") > strings.Index(out, "Uptrends:") {
		t.Errorf("expected downtrends section first")
	}
}

func TestJSONWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	writer := &JSONWriter{Location: time.UTC}

	if err := writer.Write(&buf, sampleReport()); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	var decoded struct {
		DownTrends []struct {
			StartDate   string  `json:"start_date"`
			StartIndex  int     `json:"start_index"`
			CandleCount int     `json:"number_of_candles"`
			Percentage  float64 `json:"percentage"`
			Direction   string  `json:"direction"`
		} `json:"down_trends"`
		UpTrends    []json.RawMessage `json:"up_trends"`
		DownSummary Summary           `json:"down_summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}

	if len(decoded.DownTrends) != 2 {
		t.Fatalf("expected 2 down trends, got %d", len(decoded.DownTrends))
	}
	first := decoded.DownTrends[0]
	if first.StartDate != "Mar 05 2024 15:00:00" || first.StartIndex != 2 || first.CandleCount != 1 || first.Percentage != -12.5 || first.Direction != "down" {
		t.Errorf("unexpected first episode: %+v", first)
	}
	if decoded.UpTrends == nil || len(decoded.UpTrends) != 0 {
		t.Errorf("expected empty up_trends array, got %v", decoded.UpTrends)
	}
	if decoded.DownSummary.Continued != 1 {
		t.Errorf("unexpected summary: %+v", decoded.DownSummary)
	}
}

func TestSummarize(t *testing.T) {
	episodes := []trend.Episode{
		{CandleCount: 0},
		{CandleCount: 2, PercentageChange: -4},
		{CandleCount: 4, PercentageChange: -8},
	}

	got := Summarize(episodes)
	want := Summary{Count: 3, Continued: 2, AverageCandles: 3, AveragePercentage: -6, MaxCandles: 4}
	if got != want {
		t.Errorf("Summarize() = %+v, want %+v", got, want)
	}
	if (Summarize(nil) != Summary{}) {
		t.Errorf("expected zero summary for empty input")
	}
}

func TestNewWriter(t *testing.T) {
	if w, err := NewWriter(config.ReportConfig{Format: config.FormatJSON, Location: "UTC"}); err != nil {
		t.Fatalf("NewWriter returned error: %v", err)
	} else if _, ok := w.(*JSONWriter); !ok {
		t.Errorf("expected JSONWriter, got %T", w)
	}

	if _, err := NewWriter(config.ReportConfig{Format: "xml"}); err == nil {
		t.Errorf("expected error for unknown format")
	}
	if _, err := NewWriter(config.ReportConfig{Format: config.FormatTable, Location: "Mars/Olympus"}); err == nil {
		t.Errorf("expected error for unknown location")
	}
}
