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

package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"placelens/pkg/metrics"
	"placelens/pkg/tracing"
)

// call 描述一次请求；path 已完成转义，直接拼在 baseURL 之后
type call struct {
	op     string
	method string
	path   string
	query  map[string]string
	upload *Upload

	// multipart 为 true 时必须带 upload
	multipart bool
}

// do 发出请求，2xx 时把响应体交给 decode。每次调用只记录一个结果（指标、span、日志）。
// decode 返回的错误应为 *MalformedResponseError。
func (c *Client) do(ctx context.Context, cl call, decode func(body []byte) error) error {
	var part uploadPart
	if cl.multipart {
		var err error
		if part, err = cl.upload.prepare(); err != nil {
			return fmt.Errorf("%s: %w", cl.op, err)
		}
	}
	endpoint := c.baseURL + cl.path
	ctx, span := tracing.StartRequestSpan(ctx, cl.op, cl.method, endpoint)
	start := time.Now()
	status := 0
	outcome := metrics.OutcomeSuccess

	err := func() error {
		req := c.http.R().SetContext(ctx)
		if c.origin != "" {
			req.SetHeader("Origin", c.origin)
		}
		if len(cl.query) > 0 {
			req.SetQueryParams(cl.query)
		}
		if cl.multipart {
			counter := &countingReader{r: part.reader}
			defer func() {
				metrics.UploadBytesTotal.WithLabelValues(cl.op).Add(float64(counter.n))
			}()
			req.SetMultipartField("file", part.name, part.contentType, counter)
		}

		c.logger.DebugContext(ctx, "placelens request", "op", cl.op, "method", cl.method, "url", endpoint)
		resp, err := req.Execute(cl.method, endpoint)
		if err != nil {
			outcome = metrics.OutcomeTransport
			return &RemoteRequestError{Op: cl.op, Err: err}
		}
		status = resp.StatusCode()
		if !resp.IsSuccess() {
			outcome = metrics.OutcomeRemote
			return &RemoteRequestError{
				Op:         cl.op,
				StatusCode: status,
				Status:     statusText(resp),
				Detail:     errorDetail(resp.Body()),
			}
		}
		if err := decode(resp.Body()); err != nil {
			outcome = metrics.OutcomeMalformed
			return err
		}
		return nil
	}()

	elapsed := time.Since(start)
	metrics.ObserveRequest(cl.op, outcome, elapsed)
	tracing.EndRequestSpan(span, status, err)
	if err != nil {
		c.logger.WarnContext(ctx, "placelens request failed",
			"op", cl.op, "url", endpoint, "status", status, "outcome", outcome, "error", err)
		return err
	}
	c.logger.DebugContext(ctx, "placelens request done",
		"op", cl.op, "status", status, "elapsed_ms", elapsed.Milliseconds())
	return nil
}

// decodeObject 把响应体解析为 JSON 对象，并要求 fields 都存在且不为 null
func decodeObject(op string, body []byte, fields ...string) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, &MalformedResponseError{Op: op, Err: err}
	}
	for _, f := range fields {
		raw, ok := obj[f]
		if !ok || isNull(raw) {
			return nil, &MalformedResponseError{Op: op, Field: f, Err: errMissingField}
		}
	}
	return obj, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// escapePathSegment 把单个路径段完全百分号编码：除字母数字与 "-_.~" 外都转义（空格为 %20，"," 为 %2C）
func escapePathSegment(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// statusText 取服务端状态行中的文本，缺省时用标准文本
func statusText(resp *resty.Response) string {
	code := resp.StatusCode()
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status(), strconv.Itoa(code)))
	if text == "" {
		text = http.StatusText(code)
	}
	return text
}

// errorDetail 提取 FastAPI 错误体 {"detail": "..."}；其他格式返回空
func errorDetail(body []byte) string {
	var e struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err != nil || len(e.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Detail, &s); err != nil {
		return ""
	}
	return s
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// restyLogger 把 resty 内部日志转到 slog
type restyLogger struct {
	l *slog.Logger
}

func (r restyLogger) Errorf(format string, v ...interface{}) {
	r.l.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "resty")
}

func (r restyLogger) Warnf(format string, v ...interface{}) {
	r.l.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "resty")
}

func (r restyLogger) Debugf(format string, v ...interface{}) {
	r.l.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "resty")
}
