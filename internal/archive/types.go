package archive

import (
	"time"

	"rsi-trends/internal/config"
	"rsi-trends/internal/trend"
)

// RunMeta 描述一次分析的来源与参数。
type RunMeta struct {
	Source    string
	Analysis  config.AnalysisConfig
	CreatedAt time.Time
}

// Run 为归档中的一次分析记录。
type Run struct {
	ID            int64        `json:"id"`
	Source        string       `json:"source"`
	Window        trend.Window `json:"window"`
	DownThreshold float64      `json:"down_threshold"`
	UpThreshold   float64      `json:"up_threshold"`
	Period        int          `json:"period"`
	DownCount     int          `json:"down_count"`
	UpCount       int          `json:"up_count"`
	CreatedAt     time.Time    `json:"created_at"`
}
