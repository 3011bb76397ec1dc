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
	"errors"
	"fmt"

	perrors "placelens/pkg/errors"
)

var (
	// ErrMissingBaseURL 后端地址为空（启动期配置错误）
	ErrMissingBaseURL = fmt.Errorf("%w: server base URL", perrors.ErrMissingConfig)
	// ErrInvalidBaseURL 后端地址不是绝对 http(s) URL
	ErrInvalidBaseURL = fmt.Errorf("%w: server base URL", perrors.ErrInvalidArg)

	errMissingField = errors.New("missing field")
)

// RemoteRequestError 后端返回非 2xx，或请求未能完成（StatusCode 为 0，Err 为底层错误）
type RemoteRequestError struct {
	Op         string
	StatusCode int
	Status     string // 服务端状态文本，如 "Not Found"
	Detail     string // FastAPI {"detail": "..."} 中的说明，可能为空
	Err        error
}

func (e *RemoteRequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
	}
	msg := fmt.Sprintf("%s: server error: %s (%d)", e.Op, e.Status, e.StatusCode)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *RemoteRequestError) Unwrap() error { return e.Err }

// MalformedResponseError 响应体不是 JSON，或缺少预期字段
type MalformedResponseError struct {
	Op    string
	Field string
	Err   error
}

func (e *MalformedResponseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: malformed response: field %q: %v", e.Op, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// IsRemote 判断 err 是否为 RemoteRequestError
func IsRemote(err error) bool {
	var re *RemoteRequestError
	return errors.As(err, &re)
}

// IsMalformed 判断 err 是否为 MalformedResponseError
func IsMalformed(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}
