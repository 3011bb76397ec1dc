// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package places 是图片推荐 / 视觉分析后端的 HTTP 客户端。
// 每个方法对应一次独立的请求-响应，不重试、不缓存；Client 创建后只读，可并发使用。
package places

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"placelens/pkg/config"
	plog "placelens/pkg/log"
	"placelens/pkg/utils"
)

// Client 后端客户端
type Client struct {
	baseURL string
	origin  string
	http    *resty.Client
	logger  *slog.Logger
}

// Option 客户端选项
type Option func(*options)

type options struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	origin     string
}

// WithHTTPClient 注入底层 *http.Client（自定义 Transport、代理、测试桩等）
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithTimeout 单次请求超时，<=0 表示不设超时
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithLogger 设置日志；未设置时丢弃日志
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCORS 以跨域模式发请求：每个请求带 Origin 头
func WithCORS(origin string) Option {
	return func(o *options) { o.origin = origin }
}

// New 创建客户端。baseURL 末尾的 '/' 会被去掉；为空时返回 ErrMissingBaseURL。
func New(baseURL string, opts ...Option) (*Client, error) {
	base := utils.TrimTrailingSlashes(strings.TrimSpace(baseURL))
	if base == "" {
		return nil, ErrMissingBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = plog.Discard().Logger
	}

	var rc *resty.Client
	if o.httpClient != nil {
		rc = resty.NewWithClient(o.httpClient)
	} else {
		rc = resty.New()
	}
	if o.timeout > 0 {
		rc.SetTimeout(o.timeout)
	}
	// 上传不是幂等操作，保持 resty 默认的 0 次重试
	rc.SetRetryCount(0)
	rc.SetLogger(restyLogger{o.logger})

	return &Client{
		baseURL: base,
		origin:  o.origin,
		http:    rc,
		logger:  o.logger,
	}, nil
}

// NewFromConfig 根据 server 配置创建客户端，opts 可追加或覆盖
func NewFromConfig(cfg config.ServerConfig, opts ...Option) (*Client, error) {
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	base := []Option{WithTimeout(timeout)}
	if cfg.CORS.Enable {
		base = append(base, WithCORS(cfg.CORS.Origin))
	}
	return New(cfg.URL, append(base, opts...)...)
}

// BaseURL 返回规范化后的后端地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

