package minimax

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/speechflow/config"
	"github.com/BaSui01/speechflow/internal/tlsutil"
	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/types"
	"go.uber.org/zap"
)

const (
	providerName   = "minimax"
	defaultBaseURL = "https://api.minimaxi.com"
	defaultTimeout = 30 * time.Second
)

// Config MiniMax 客户端配置
type Config struct {
	APIKey  string
	GroupID string
	BaseURL string
	Timeout time.Duration
}

// ConfigFromApp 从应用配置中提取客户端配置
func ConfigFromApp(cfg config.MiniMaxConfig) Config {
	return Config{
		APIKey:  cfg.APIKey,
		GroupID: cfg.GroupID,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	}
}

// Option 客户端选项
type Option func(*Client)

// WithHTTPClient 替换底层 HTTP 客户端
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// Client 实现 speech.Provider 与 speech.VoiceProvider
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

var (
	_ speech.Provider      = (*Client)(nil)
	_ speech.VoiceProvider = (*Client)(nil)
)

// NewClient 创建 MiniMax 客户端。连接池由所有调用共享，
// 非流式调用的超时由 Config.Timeout 控制。
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, types.NewValidationError("minimax.api_key", "is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	transport := tlsutil.SecureTransport(tlsutil.TransportOptions{
		MaxIdleConnsPerHost:   16,
		ResponseHeaderTimeout: cfg.Timeout,
	})

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Transport: transport},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("provider", providerName))
	return c, nil
}

// Name 返回上游名称
func (c *Client) Name() string { return providerName }

// endpoint 拼接接口地址，GroupId 以查询参数附带
func (c *Client) endpoint(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	if c.cfg.GroupID != "" {
		query.Set("GroupId", c.cfg.GroupID)
	}
	u := c.cfg.BaseURL + path
	if enc := query.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "build request").WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// doJSON 发送 JSON 请求并解析响应。out 必须带有 base_resp 字段，
// 由调用方通过 statusOf 取出。
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return types.NewError(types.ErrInternalError, "encode request").WithCause(err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	req, err := c.newRequest(callCtx, method, c.endpoint(path, query), body, contentType)
	if err != nil {
		return err
	}
	return c.send(ctx, req, out)
}

// send 执行请求，处理 HTTP 错误并解码响应体
func (c *Client) send(parent context.Context, req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return mapTransportError(parent, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("minimax call",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode >= 400 {
		return mapHTTPError(resp.StatusCode, readErrorMessage(resp.Body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return mapTransportError(parent, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return decodeError(err)
	}
	return nil
}

// download 下载音频文件；带鉴权头仅用于上游 files 接口
func (c *Client) download(ctx context.Context, rawURL string, auth bool) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, types.NewValidationError("audio_url", "invalid url: %v", err)
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, mapTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, mapHTTPError(resp.StatusCode, readErrorMessage(resp.Body))
	}

	// files 接口出错时返回 JSON 而非音频
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var envelope struct {
			BaseResp baseResp `json:"base_resp"`
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, mapTransportError(ctx, err)
		}
		if json.Unmarshal(data, &envelope) == nil {
			if e := mapStatusError(envelope.BaseResp); e != nil {
				return nil, e
			}
		}
		return data, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, mapTransportError(ctx, err)
	}
	if len(data) == 0 {
		return nil, types.NewError(types.ErrProvider, "empty audio download").WithProvider(providerName)
	}
	return data, nil
}

func (c *Client) String() string {
	return fmt.Sprintf("minimax(%s)", c.cfg.BaseURL)
}
