package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/fachebot/oneline/internal/config"
	"github.com/fachebot/oneline/internal/logger"
	"github.com/sashabaranov/go-openai"
)

// ErrEmptyResponse 大模型没有返回任何内容
var ErrEmptyResponse = errors.New("LLM API 返回空结果")

// openAIClientInterface 定义 OpenAI 客户端接口，便于测试
type openAIClientInterface interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
}

// Message 对话消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Client struct {
	config       *config.LLM
	openaiClient openAIClientInterface
}

// NewClient 创建客户端，transport 为 nil 时使用默认传输层
func NewClient(cfg *config.LLM, transport http.RoundTripper) *Client {
	openaiConfig := newOpenAIConfig(cfg)
	if transport != nil {
		openaiConfig.HTTPClient = &http.Client{Transport: transport}
	}

	return &Client{
		config:       cfg,
		openaiClient: openai.NewClientWithConfig(openaiConfig),
	}
}

// IsAzure 端点是否为 Azure OpenAI
func IsAzure(endpoint string) bool {
	return strings.Contains(endpoint, "openai.azure.com")
}

// AzureDeployment Azure 模型配置形如 "deployment@model"，部署名在 @ 之前
func AzureDeployment(model string) string {
	deployment, _, _ := strings.Cut(model, "@")
	return deployment
}

// newOpenAIConfig Azure 端点使用 api-key 鉴权，其他端点去掉末尾的 /chat/completions
func newOpenAIConfig(cfg *config.LLM) openai.ClientConfig {
	if IsAzure(cfg.BaseURL) {
		openaiConfig := openai.DefaultAzureConfig(cfg.APIKey, strings.TrimRight(cfg.BaseURL, "/"))
		if cfg.AzureVersion != "" {
			openaiConfig.APIVersion = cfg.AzureVersion
		}
		deployment := AzureDeployment(cfg.Model)
		openaiConfig.AzureModelMapperFunc = func(string) string {
			return deployment
		}
		return openaiConfig
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/chat/completions")
	openaiConfig := openai.DefaultConfig(cfg.APIKey)
	openaiConfig.BaseURL = baseURL
	return openaiConfig
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// request temperature 为 nil 时使用配置值
func (c *Client) request(messages []Message, temperature *float32) openai.ChatCompletionRequest {
	value := c.config.Temperature
	if temperature != nil {
		value = *temperature
		// go-openai 会省略值为 0 的 temperature
		if value == 0 {
			value = math.SmallestNonzeroFloat32
		}
	}
	return openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    toOpenAIMessages(messages),
		Temperature: value,
	}
}

// optionalTemperature 小于等于 0 视为未指定
func optionalTemperature(temperature float32) *float32 {
	if temperature <= 0 {
		return nil
	}
	return &temperature
}

// Model 当前使用的模型
func (c *Client) Model() string {
	return c.config.Model
}

// Relay 执行一次非流式请求并返回上游原始响应，temperature 为 nil 时使用配置值
func (c *Client) Relay(ctx context.Context, messages []Message, temperature *float32) (openai.ChatCompletionResponse, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.config.Timeout)*time.Second)
		defer cancel()
	}

	resp, err := c.openaiClient.CreateChatCompletion(ctx, c.request(messages, temperature))
	if err != nil {
		logger.Warnf("[LLM] 调用 LLM API 失败, model: %s, %v", c.config.Model, err)
		return resp, wrapError(err)
	}
	return resp, nil
}

// Chat 执行一次非流式请求，返回回复文本。temperature 小于等于 0 时使用配置值
func (c *Client) Chat(ctx context.Context, messages []Message, temperature float32) (string, error) {
	resp, err := c.Relay(ctx, messages, optionalTemperature(temperature))
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

// RelayStream 执行流式请求，每收到一个分片调用一次 onChunk。onChunk 返回错误时中止读取
func (c *Client) RelayStream(ctx context.Context, messages []Message, temperature *float32, onChunk func(openai.ChatCompletionStreamResponse) error) error {
	if c.config.StreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.config.StreamTimeout)*time.Second)
		defer cancel()
	}

	stream, err := c.openaiClient.CreateChatCompletionStream(ctx, c.request(messages, temperature))
	if err != nil {
		logger.Warnf("[LLM] 创建流式请求失败, model: %s, %v", c.config.Model, err)
		return wrapError(err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			logger.Warnf("[LLM] 读取流式响应失败, model: %s, %v", c.config.Model, err)
			return wrapError(err)
		}
		if err := onChunk(resp); err != nil {
			return err
		}
	}
}

// ChatStream 执行流式请求，onChunk 接收增量文本，返回完整回复
func (c *Client) ChatStream(ctx context.Context, messages []Message, temperature float32, onChunk func(string) error) (string, error) {
	var sb strings.Builder
	err := c.RelayStream(ctx, messages, optionalTemperature(temperature), func(resp openai.ChatCompletionStreamResponse) error {
		if len(resp.Choices) == 0 {
			return nil
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			return nil
		}
		sb.WriteString(delta)
		if onChunk != nil {
			return onChunk(delta)
		}
		return nil
	})
	if err != nil {
		return sb.String(), err
	}

	content := strings.TrimSpace(sb.String())
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

// UpstreamError 上游调用失败的统一错误结构
type UpstreamError struct {
	Kind       string `json:"error"`
	Message    string `json:"message,omitempty"`
	Status     int    `json:"status,omitempty"`
	StatusText string `json:"statusText,omitempty"`
	Timeout    bool   `json:"timeout,omitempty"`

	err error
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.err
}

// wrapError 将 go-openai 返回的错误转换为 UpstreamError
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{
			Kind:       "Upstream error",
			Message:    apiErr.Message,
			Status:     apiErr.HTTPStatusCode,
			StatusText: http.StatusText(apiErr.HTTPStatusCode),
			err:        err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		message := err.Error()
		if reqErr.Err != nil {
			message = reqErr.Err.Error()
		}
		return &UpstreamError{
			Kind:       "Upstream error",
			Message:    message,
			Status:     reqErr.HTTPStatusCode,
			StatusText: http.StatusText(reqErr.HTTPStatusCode),
			err:        err,
		}
	}

	return &UpstreamError{
		Kind:    "Request failed",
		Message: err.Error(),
		Status:  http.StatusInternalServerError,
		Timeout: errors.Is(err, context.DeadlineExceeded),
		err:     err,
	}
}
