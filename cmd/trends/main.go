package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"rsi-trends/internal/app"
	"rsi-trends/internal/config"
	"rsi-trends/internal/log"
	"rsi-trends/internal/store"
)

func main() {
	var (
		configPath string
		serve      bool
	)
	flag.StringVar(&configPath, "config", "", "配置文件路径，默认使用 configs/config.yaml")
	flag.BoolVar(&serve, "serve", false, "分析完成后继续提供 HTTP 查询接口")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	var sqliteStore *store.Store
	if cfg.Database.Enabled {
		sqliteStore, err = store.NewSQLite(cfg.Database)
		if err != nil {
			logger.Error("初始化数据库失败", zap.Error(err))
			os.Exit(1)
		}
		defer func() {
			if closeErr := sqliteStore.Close(); closeErr != nil {
				logger.Warn("关闭数据库失败", zap.Error(closeErr))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.New(cfg, logger, sqliteStore).Run(ctx, serve); err != nil {
		logger.Error("趋势分析失败", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("趋势分析完成")
}
