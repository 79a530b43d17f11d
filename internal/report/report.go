package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"rsi-trends/internal/config"
	"rsi-trends/internal/trend"
)

// DisplayTimeLayout 为表格中的时间格式，例如 "Mar 05 2024 14:30:00"。
const DisplayTimeLayout = "Jan 02 2006 15:04:05"

var tableHeader = []string{"#", "start_date", "end_date", "number_of_candles", "price_change", "percentage"}

// Writer 将分析结果输出到 io.Writer。
type Writer interface {
	Write(w io.Writer, report trend.Report) error
}

// NewWriter 根据配置创建输出器。
func NewWriter(cfg config.ReportConfig) (Writer, error) {
	loc := time.Local
	if cfg.Location != "" {
		l, err := time.LoadLocation(cfg.Location)
		if err != nil {
			return nil, fmt.Errorf("report: 解析时区失败: %w", err)
		}
		loc = l
	}

	switch cfg.Format {
	case config.FormatTable, "":
		return &TableWriter{Location: loc}, nil
	case config.FormatJSON:
		return &JSONWriter{Location: loc, Indent: true}, nil
	default:
		return nil, fmt.Errorf("report: 不支持的输出格式 %q", cfg.Format)
	}
}

// FormatTime 按展示格式输出时间。
func FormatTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DisplayTimeLayout)
}

// TableWriter 以表格形式输出下跌与上涨趋势。
type TableWriter struct {
	Location *time.Location
}

// Write 实现 Writer。
func (tw *TableWriter) Write(w io.Writer, report trend.Report) error {
	fmt.Fprintf(w, "Window: %d candles (%s - %s)\n\n",
		report.Window.Candles,
		FormatTime(report.Window.StartTime, tw.Location),
		FormatTime(report.Window.EndTime, tw.Location),
	)

	sections := []struct {
		title    string
		episodes []trend.Episode
	}{
		{title: "Downtrends", episodes: report.Down},
		{title: "Uptrends", episodes: report.Up},
	}

	for _, section := range sections {
		fmt.Fprintf(w, "%s:\n", section.title)
		if err := tw.writeTable(w, section.episodes); err != nil {
			return err
		}
		fmt.Fprintln(w, Summarize(section.episodes).String())
		fmt.Fprintln(w)
	}

	return nil
}

func (tw *TableWriter) writeTable(w io.Writer, episodes []trend.Episode) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader(tableHeader),
	)

	for i, e := range episodes {
		if err := table.Append([]string{
			fmt.Sprintf("%d", i),
			FormatTime(e.StartTime, tw.Location),
			FormatTime(e.EndTime, tw.Location),
			fmt.Sprintf("%d", e.CandleCount),
			fmt.Sprintf("%.2f", e.PriceChange),
			fmt.Sprintf("%.4f", e.PercentageChange),
		}); err != nil {
			return fmt.Errorf("report: 写入表格行失败: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("report: 渲染表格失败: %w", err)
	}
	return nil
}

// JSONWriter 以 JSON 输出分析结果及统计摘要。
type JSONWriter struct {
	Location *time.Location
	Indent   bool
}

type jsonEpisode struct {
	trend.Episode
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type jsonReport struct {
	Window      trend.Window  `json:"window"`
	DownTrends  []jsonEpisode `json:"down_trends"`
	UpTrends    []jsonEpisode `json:"up_trends"`
	DownSummary Summary       `json:"down_summary"`
	UpSummary   Summary       `json:"up_summary"`
}

// Write 实现 Writer。
func (jw *JSONWriter) Write(w io.Writer, report trend.Report) error {
	payload := jsonReport{
		Window:      report.Window,
		DownTrends:  jw.convert(report.Down),
		UpTrends:    jw.convert(report.Up),
		DownSummary: Summarize(report.Down),
		UpSummary:   Summarize(report.Up),
	}

	encoder := json.NewEncoder(w)
	if jw.Indent {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("report: 序列化结果失败: %w", err)
	}
	return nil
}

func (jw *JSONWriter) convert(episodes []trend.Episode) []jsonEpisode {
	out := make([]jsonEpisode, 0, len(episodes))
	for _, e := range episodes {
		out = append(out, jsonEpisode{
			Episode:   e,
			StartDate: FormatTime(e.StartTime, jw.Location),
			EndDate:   FormatTime(e.EndTime, jw.Location),
		})
	}
	return out
}
