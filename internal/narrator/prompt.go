package narrator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"text/template"

	"rsi-trends/internal/report"
	"rsi-trends/internal/trend"
)

// 每个方向最多附带的趋势条数。
const topEpisodes = 5

const summaryTemplate = `
你是一名加密货币市场分析师。下面是对 15 分钟 K 线计算 RSI 后切分出的趋势统计。
下跌趋势由 RSI 向下跌破上阈值触发，上涨趋势由 RSI 向上突破下阈值触发，趋势在 RSI 保持严格单调时延续。

分析窗口：{{ .Window.Candles }} 根K线（{{ .WindowStart }} 至 {{ .WindowEnd }}）

统计摘要：
{{ .StatsJSON }}

持续时间最长的趋势：
{{ .EpisodesJSON }}

请用不超过 200 字的中文总结：
1. 两个方向的趋势数量与延续比例；
2. 典型持续时长与价格变动幅度；
3. 值得注意的极端趋势。
只输出总结正文，不要输出 JSON。
`

var tmpl = template.Must(template.New("summary").Parse(summaryTemplate))

type promptStats struct {
	Down report.Summary `json:"down"`
	Up   report.Summary `json:"up"`
}

type promptEpisodes struct {
	Down []trend.Episode `json:"down"`
	Up   []trend.Episode `json:"up"`
}

// PromptContext 用于渲染提示词。
type PromptContext struct {
	Window       trend.Window
	WindowStart  string
	WindowEnd    string
	StatsJSON    string
	EpisodesJSON string
}

// BuildPrompt 将分析结果渲染成提示词字符串。
func BuildPrompt(r trend.Report) (string, error) {
	stats, err := json.MarshalIndent(promptStats{
		Down: report.Summarize(r.Down),
		Up:   report.Summarize(r.Up),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("narrator: 序列化统计失败: %w", err)
	}

	episodes, err := json.MarshalIndent(promptEpisodes{
		Down: longest(r.Down, topEpisodes),
		Up:   longest(r.Up, topEpisodes),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("narrator: 序列化趋势失败: %w", err)
	}

	ctx := PromptContext{
		Window:       r.Window,
		WindowStart:  report.FormatTime(r.Window.StartTime, nil),
		WindowEnd:    report.FormatTime(r.Window.EndTime, nil),
		StatsJSON:    string(stats),
		EpisodesJSON: string(episodes),
	}

	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("narrator: 渲染提示词失败: %w", err)
	}

	return buf.String(), nil
}

// longest 按持续K线数降序取前 n 条，不修改入参。
func longest(episodes []trend.Episode, n int) []trend.Episode {
	out := make([]trend.Episode, len(episodes))
	copy(out, episodes)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CandleCount > out[j].CandleCount
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
