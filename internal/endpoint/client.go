// Package endpoint 挂件与对话服务之间的HTTP传输层
package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"

	"github.com/zhouzirui/careline/backend/internal/logger"
	"github.com/zhouzirui/careline/backend/internal/widget"
)

// DefaultTimeout 未配置超时时单次请求的上限
const DefaultTimeout = 30 * time.Second

const maxBodyBytes = 1 << 20

var _ widget.Endpoint = (*Client)(nil)

// TransportError 没有得到可用响应的失败
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap 同时暴露 widget.ErrTransport 和底层错误
func (e *TransportError) Unwrap() []error {
	return []error{widget.ErrTransport, e.Err}
}

// Client 调用 POST /chat 和 POST /reset，自带 cookie jar，服务端的会话 cookie 随对话保留
type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration
	log     zerolog.Logger
}

// Option 配置Client
type Option func(*Client)

// WithTimeout 设置单次请求超时
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient 替换底层HTTP客户端，缺少 cookie jar 时会自动补上
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger 设置客户端日志
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New 创建指向 baseURL 的客户端
func New(baseURL string, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, errors.Wrapf(err, "parse endpoint url %q", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, errors.Errorf("endpoint url %q must be absolute http(s)", baseURL)
	}

	c := &Client{
		base:    base,
		http:    &http.Client{},
		timeout: DefaultTimeout,
		log:     logger.WithComponent("endpoint"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.http.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, errors.Wrap(err, "create cookie jar")
		}
		c.http.Jar = jar
	}
	if c.http.Timeout == 0 {
		c.http.Timeout = c.timeout
	}
	return c, nil
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Response  *string `json:"response"`
	SessionID string  `json:"session_id"`
	IsCrisis  bool    `json:"is_crisis"`
	Error     string  `json:"error"`
}

// Send 发送一条消息。非2xx的JSON响应返回 *widget.ApplicationError，
// 无法解析为回复的情况返回 *TransportError。
func (c *Client) Send(ctx context.Context, message, sessionID string) (widget.Reply, error) {
	body, err := json.Marshal(chatRequest{Message: message, SessionID: sessionID})
	if err != nil {
		return widget.Reply{}, errors.Wrap(err, "encode chat request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat", bytes.NewReader(body))
	if err != nil {
		return widget.Reply{}, errors.Wrap(err, "build chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return widget.Reply{}, &TransportError{Op: "post chat", Err: err}
	}
	defer resp.Body.Close()

	var payload chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return widget.Reply{}, &TransportError{
			Op:  "decode chat reply",
			Err: errors.Wrapf(err, "status %d", resp.StatusCode),
		}
	}

	c.log.Debug().
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Bool("crisis", payload.IsCrisis).
		Msg("chat reply received")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return widget.Reply{}, &widget.ApplicationError{Status: resp.StatusCode, Text: payload.Error}
	}
	if payload.Response == nil {
		return widget.Reply{}, &TransportError{Op: "decode chat reply", Err: errors.New("reply has no response field")}
	}

	return widget.Reply{
		Text:      *payload.Response,
		SessionID: payload.SessionID,
		Crisis:    payload.IsCrisis,
	}, nil
}

// Reset 通知服务端会话已清除。忽略响应体，任何HTTP状态码都视为送达，只有传输失败才返回错误。
func (c *Client) Reset(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/reset", http.NoBody)
	if err != nil {
		return errors.Wrap(err, "build reset request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: "post reset", Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn().Int("status", resp.StatusCode).Msg("reset answered with an error status")
	}
	return nil
}
