package narrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rsi-trends/internal/config"
	"rsi-trends/internal/trend"
)

func sampleReport() trend.Report {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	down := make([]trend.Episode, 0, 7)
	for i := 0; i < 7; i++ {
		down = append(down, trend.Episode{Direction: trend.Down, StartIndex: i * 10, EndIndex: i*10 + i, CandleCount: i})
	}
	return trend.Report{
		Window: trend.Window{Candles: 100, StartTime: start, EndTime: start.Add(99 * 15 * time.Minute)},
		Down:   down,
		Up:     []trend.Episode{{Direction: trend.Up, StartIndex: 3, EndIndex: 5, CandleCount: 2, PercentageChange: 1.5}},
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt(sampleReport())
	if err != nil {
		t.Fatalf("BuildPrompt returned error: %v", err)
	}
	if !strings.Contains(prompt, "100 根K线") {
		t.Errorf("expected window size in prompt")
	}
	if !strings.Contains(prompt, `"continued": 6`) {
		t.Errorf("expected down summary in prompt:\n%s", prompt)
	}
	if strings.Contains(prompt, `"start_index": 10,`) {
		t.Errorf("expected only the longest episodes in prompt")
	}
}

func TestLongest(t *testing.T) {
	r := sampleReport()
	top := longest(r.Down, 3)
	if len(top) != 3 || top[0].CandleCount != 6 || top[2].CandleCount != 4 {
		t.Fatalf("unexpected selection: %+v", top)
	}
	if r.Down[0].CandleCount != 0 {
		t.Errorf("longest must not reorder input")
	}
}

func TestClient_Summarize(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  下跌趋势多为短暂回落。 "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	client, err := NewClient(config.NarratorConfig{
		APIKey:  "test",
		BaseURL: srv.URL + "/v1",
		Model:   "gpt-test",
		Timeout: 5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	text, err := client.Summarize(context.Background(), sampleReport())
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if text != "下跌趋势多为短暂回落。" {
		t.Errorf("unexpected summary %q", text)
	}
	if gotModel != "gpt-test" {
		t.Errorf("expected model gpt-test, got %q", gotModel)
	}
}

func TestClient_SummarizeEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	client, err := NewClient(config.NarratorConfig{APIKey: "test", BaseURL: srv.URL, Model: "m"}, nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if _, err := client.Summarize(context.Background(), sampleReport()); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

func TestNewClient_RequiresKeyAndModel(t *testing.T) {
	if _, err := NewClient(config.NarratorConfig{Model: "m"}, nil); err == nil {
		t.Errorf("expected error for missing api key")
	}
	if _, err := NewClient(config.NarratorConfig{APIKey: "k"}, nil); err == nil {
		t.Errorf("expected error for missing model")
	}
}
