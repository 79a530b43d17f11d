package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "trends"
)

// Load 读取配置文件并结合环境变量返回 Config。
// 未显式指定路径且默认配置文件不存在时，仅使用默认值与环境变量。
func Load(path string) (*Config, error) {
	v := viper.New()

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if explicit || fileExists(path) {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
			}
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	analysis := DefaultAnalysisConfig()
	v.SetDefault("analysis.down_threshold", analysis.DownThreshold)
	v.SetDefault("analysis.up_threshold", analysis.UpThreshold)
	v.SetDefault("analysis.period", analysis.Period)
	v.SetDefault("analysis.window_size", analysis.WindowSize)

	v.SetDefault("source.kind", SourceCSV)
	v.SetDefault("source.path", "BTC.csv")

	v.SetDefault("exchange.name", "binanceusdm")
	v.SetDefault("exchange.market", "BTC/USDT:USDT")
	v.SetDefault("exchange.timeframe", "15m")
	v.SetDefault("exchange.api_key", "")
	v.SetDefault("exchange.api_secret", "")
	v.SetDefault("exchange.use_sandbox", false)
	v.SetDefault("exchange.retry.max_attempts", 5)
	v.SetDefault("exchange.retry.min_delay", "500ms")
	v.SetDefault("exchange.retry.max_delay", "5s")

	v.SetDefault("report.format", FormatTable)
	v.SetDefault("report.location", "Local")
	v.SetDefault("report.output", "stdout")

	v.SetDefault("narrator.enabled", false)
	v.SetDefault("narrator.api_key", "")
	v.SetDefault("narrator.base_url", "https://api.openai.com/v1")
	v.SetDefault("narrator.model", "gpt-4.1")
	v.SetDefault("narrator.timeout", "30s")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.path", "data/trends.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stderr"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", ":8080")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
