package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

const (
	// SourceCSV 从本地 CSV 文件读取K线。
	SourceCSV = "csv"
	// SourceExchange 通过交易所接口拉取K线。
	SourceExchange = "exchange"

	// FormatTable 以表格形式输出趋势。
	FormatTable = "table"
	// FormatJSON 以 JSON 形式输出趋势。
	FormatJSON = "json"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Source   SourceConfig   `mapstructure:"source"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Report   ReportConfig   `mapstructure:"report"`
	Narrator NarratorConfig `mapstructure:"narrator"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
}

// AnalysisConfig 控制 RSI 与趋势切分参数。
type AnalysisConfig struct {
	DownThreshold float64 `mapstructure:"down_threshold"`
	UpThreshold   float64 `mapstructure:"up_threshold"`
	Period        int     `mapstructure:"period"`
	WindowSize    int     `mapstructure:"window_size"`
}

// DefaultAnalysisConfig 返回 80/30 阈值、14 周期、一年15分钟K线窗口。
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		DownThreshold: 80,
		UpThreshold:   30,
		Period:        14,
		WindowSize:    35040,
	}
}

// SourceConfig 指定K线来源。
type SourceConfig struct {
	Kind string `mapstructure:"kind"`
	Path string `mapstructure:"path"`
}

// ExchangeConfig 描述交易所连接信息。
type ExchangeConfig struct {
	Name       string      `mapstructure:"name"`
	Market     string      `mapstructure:"market"`
	Timeframe  string      `mapstructure:"timeframe"`
	APIKey     string      `mapstructure:"api_key"`
	APISecret  string      `mapstructure:"api_secret"`
	UseSandbox bool        `mapstructure:"use_sandbox"`
	Retry      RetryConfig `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// ReportConfig 控制结果输出。
type ReportConfig struct {
	Format   string `mapstructure:"format"`
	Location string `mapstructure:"location"`
	Output   string `mapstructure:"output"`
}

// NarratorConfig 描述大模型摘要调用参数。
type NarratorConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// ServerConfig 控制只读 HTTP 接口。
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	err := c.Analysis.Validate()

	switch c.Source.Kind {
	case SourceCSV:
		if strings.TrimSpace(c.Source.Path) == "" {
			err = multierr.Append(err, errors.New("source.path 不能为空"))
		}
	case SourceExchange:
		err = multierr.Append(err, c.Exchange.validate())
	default:
		err = multierr.Append(err, fmt.Errorf("source.kind 仅支持 %s|%s，当前 %q", SourceCSV, SourceExchange, c.Source.Kind))
	}

	if c.Report.Format != FormatTable && c.Report.Format != FormatJSON {
		err = multierr.Append(err, fmt.Errorf("report.format 仅支持 %s|%s，当前 %q", FormatTable, FormatJSON, c.Report.Format))
	}
	if c.Report.Location != "" {
		if _, locErr := time.LoadLocation(c.Report.Location); locErr != nil {
			err = multierr.Append(err, fmt.Errorf("report.location 无效: %w", locErr))
		}
	}

	if c.Narrator.Enabled {
		if c.Narrator.APIKey == "" {
			err = multierr.Append(err, errors.New("narrator.api_key 不能为空"))
		}
		if c.Narrator.Model == "" {
			err = multierr.Append(err, errors.New("narrator.model 不能为空"))
		}
		if c.Narrator.Timeout <= 0 {
			err = multierr.Append(err, errors.New("narrator.timeout 必须大于0"))
		}
	}

	if c.Database.Enabled {
		if c.Database.Path == "" && !c.Database.InMemory {
			err = multierr.Append(err, errors.New("database.path 不能为空"))
		}
		if c.Database.MaxOpenConns <= 0 {
			err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
		}
		if c.Database.MaxIdleConns < 0 {
			err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
		}
		if c.Database.ConnMaxLifetime < 0 {
			err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
		}
	}

	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if c.Server.Enabled && c.Server.Addr == "" {
		err = multierr.Append(err, errors.New("server.addr 不能为空"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}

// Validate 校验趋势分析参数。
func (a AnalysisConfig) Validate() error {
	var err error

	if a.Period < 2 {
		err = multierr.Append(err, errors.New("analysis.period 必须不小于2"))
	}
	if a.WindowSize <= a.Period {
		err = multierr.Append(err, errors.New("analysis.window_size 必须大于 period"))
	}
	if a.UpThreshold < 0 || a.DownThreshold > 100 {
		err = multierr.Append(err, errors.New("analysis 阈值必须位于[0,100]"))
	}
	if a.UpThreshold >= a.DownThreshold {
		err = multierr.Append(err, errors.New("analysis.up_threshold 必须小于 down_threshold"))
	}

	return err
}

func (e ExchangeConfig) validate() error {
	var err error

	if !strings.EqualFold(e.Name, "binanceusdm") {
		err = multierr.Append(err, fmt.Errorf("exchange.name 仅支持 binanceusdm，当前 %q", e.Name))
	}
	if e.Market == "" {
		err = multierr.Append(err, errors.New("exchange.market 不能为空"))
	}
	if e.Timeframe == "" {
		err = multierr.Append(err, errors.New("exchange.timeframe 不能为空"))
	}
	if e.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
	}
	if e.Retry.MinDelay <= 0 || e.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.delay 必须为正"))
	}
	if e.Retry.MinDelay > e.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("exchange.retry.min_delay 不能大于 max_delay"))
	}

	return err
}
