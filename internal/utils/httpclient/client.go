package httpclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/config"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"

	"github.com/sirupsen/logrus"
)

// maxResponseSize 平台响应体上限（10MB）
const maxResponseSize = 10 * 1024 * 1024

const defaultTimeout = 30 * time.Second

// NewHTTPClient 通用HTTP客户端构建方法（支持代理、超时、自动解压）
func NewHTTPClient(cfg *config.PlatformConfig, logger *logrus.Logger) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  false,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	// 配置代理
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			logger.WithError(err).WithField("proxy", cfg.Proxy).Warn("代理地址解析失败，将不使用代理")
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
			logger.WithField("proxy", cfg.Proxy).Info("HTTP客户端已配置代理")
		}
	}

	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &compressedTransport{transport: transport, logger: logger},
	}
}

type compressedTransport struct {
	transport http.RoundTripper
	logger    *logrus.Logger
}

func (c *compressedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Add("Accept-Encoding", "gzip")
	resp, err := c.transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// 处理gzip解压
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			c.logger.WithError(err).Warn("gzip解压失败，返回原始响应")
			return resp, nil
		}
		resp.Body = &gzipReadCloser{Reader: gzReader, closer: resp.Body}
		resp.Header.Del("Content-Encoding")
	}

	return resp, nil
}

// gzipReadCloser 关闭时同时关闭解压 reader 与原始响应体
type gzipReadCloser struct {
	*gzip.Reader
	closer io.ReadCloser
}

func (g *gzipReadCloser) Close() error {
	if err := g.Reader.Close(); err != nil {
		return err
	}
	return g.closer.Close()
}

// Client 平台 REST/JSON 客户端，把 HTTP 结果统一翻译成 PlatformResponse
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
	now        func() time.Time
}

// New 创建平台客户端；httpClient 为 nil 时按配置构建
func New(cfg *config.PlatformConfig, httpClient *http.Client, logger *logrus.Logger) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg, logger)
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

// Call 一次平台请求
type Call struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any
	Headers map[string]string
}

// Do 执行请求；网络错误、限流、鉴权失败等都体现在返回的 PlatformResponse 上，不会返回 error
func (c *Client) Do(ctx context.Context, op model.Operation, call Call) *model.PlatformResponse {
	fullURL := c.baseURL + "/" + strings.TrimPrefix(call.Path, "/")
	if len(call.Query) > 0 {
		fullURL += "?" + call.Query.Encode()
	}

	var body io.Reader
	if call.Body != nil {
		data, err := json.Marshal(call.Body)
		if err != nil {
			c.logger.WithError(err).WithField("operation", op).Error("序列化请求体失败")
			return model.Fail(op, model.ReasonUnexpected, 0)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, fullURL, body)
	if err != nil {
		c.logger.WithError(err).WithField("url", fullURL).Error("构建请求失败")
		return model.Fail(op, model.ReasonUnexpected, 0)
	}
	req.Header.Set("Accept", "application/json")
	if call.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range call.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"operation": op,
			"url":       fullURL,
		}).Warn("平台请求失败")
		return model.Fail(op, model.ReasonNetworkError, 0)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.WithError(err).Debug("关闭响应体失败")
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return c.withRateLimit(model.Fail(op, model.ReasonNetworkError, resp.StatusCode), resp.Header)
	}

	var data map[string]any
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil && resp.StatusCode < 300 {
			c.logger.WithError(err).WithField("operation", op).Warn("解析平台响应失败")
			return model.Fail(op, model.ReasonUnexpected, resp.StatusCode)
		}
	}

	out := &model.PlatformResponse{Operation: op, StatusCode: resp.StatusCode, Data: data}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		out.Success = true
	} else {
		out.Error = ReasonForStatus(resp.StatusCode)
	}
	return c.withRateLimit(out, resp.Header)
}

// ReasonForStatus HTTP 状态码映射为原因码
func ReasonForStatus(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return model.ReasonRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return model.ReasonAuthentication
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return model.ReasonValidation
	case status == http.StatusNotFound:
		return model.ReasonNotFound
	case status == http.StatusRequestTimeout || status >= 500:
		return model.ReasonNetworkError
	default:
		return model.ReasonUnexpected
	}
}

// withRateLimit 解析 X-RateLimit-Remaining / X-RateLimit-Reset / Retry-After
func (c *Client) withRateLimit(resp *model.PlatformResponse, h http.Header) *model.PlatformResponse {
	if v := h.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			resp.RateLimitRemaining = &n
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			t := time.Unix(sec, 0)
			resp.RateLimitReset = &t
		}
	}
	if v := h.Get("Retry-After"); v != "" && resp.RateLimitReset == nil {
		if sec, err := strconv.Atoi(v); err == nil {
			t := c.now().Add(time.Duration(sec) * time.Second)
			resp.RateLimitReset = &t
		} else if at, err := http.ParseTime(v); err == nil {
			resp.RateLimitReset = &at
		}
	}
	return resp
}

// StringField 从平台报文取字符串，数字 ID 也转成字符串
func StringField(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	switch v := data[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
