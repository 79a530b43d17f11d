package narrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"rsi-trends/internal/config"
	"rsi-trends/internal/trend"
)

// Client 调用 OpenAI 兼容接口为分析结果生成文字摘要。
type Client struct {
	cfg    config.NarratorConfig
	logger *zap.Logger
	sdk    *openai.Client
}

// NewClient 使用给定配置创建摘要客户端。
func NewClient(cfg config.NarratorConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("narrator: api_key 不能为空")
	}
	if cfg.Model == "" {
		return nil, errors.New("narrator: model 不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sdkConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		sdkConfig.BaseURL = cfg.BaseURL
	}
	sdkConfig.HTTPClient = &http.Client{
		Timeout: cfg.Timeout + 5*time.Second,
	}

	return &Client{
		cfg:    cfg,
		logger: logger,
		sdk:    openai.NewClientWithConfig(sdkConfig),
	}, nil
}

// Summarize 生成分析结果的文字解读。
func (c *Client) Summarize(ctx context.Context, report trend.Report) (string, error) {
	prompt, err := BuildPrompt(report)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	response, err := c.sdk.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0,
	})
	if err != nil {
		c.logger.Error("调用OpenAI失败", zap.Error(err))
		return "", fmt.Errorf("narrator: 调用OpenAI失败: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", errors.New("narrator: OpenAI 返回结果为空")
	}

	content := strings.TrimSpace(response.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("narrator: OpenAI 返回内容为空")
	}

	c.logger.Info("趋势摘要生成成功",
		zap.String("model", c.cfg.Model),
		zap.Int("length", len(content)),
	)

	return content, nil
}
