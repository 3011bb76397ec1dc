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
	"bufio"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	perrors "placelens/pkg/errors"
)

// sniffLen http.DetectContentType 最多看前 512 字节
const sniffLen = 512

// Upload 一个待上传的文件。Reader 只读一次，同一个 Upload 不要用于两次请求。
type Upload struct {
	// Name 上传文件名；为空时生成随机 UUID 文件名（后端按文件名落盘）
	Name string
	// ContentType 为空时先按扩展名推断，再按内容嗅探
	ContentType string
	Reader      io.Reader
}

// NewUpload 用任意 Reader 构造 Upload
func NewUpload(name string, r io.Reader) *Upload {
	return &Upload{Name: name, Reader: r}
}

// OpenFile 打开本地文件作为 Upload，用完需 Close
func OpenFile(path string) (*Upload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Upload{Name: filepath.Base(path), Reader: f}, nil
}

// Close 关闭底层 Reader（若实现了 io.Closer）
func (u *Upload) Close() error {
	if u == nil {
		return nil
	}
	if c, ok := u.Reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type uploadPart struct {
	name        string
	contentType string
	reader      io.Reader
}

// prepare 解析出 multipart 需要的文件名、类型与 Reader，不修改 u
func (u *Upload) prepare() (uploadPart, error) {
	if u == nil || u.Reader == nil {
		return uploadPart{}, fmt.Errorf("%w: upload has no content", perrors.ErrInvalidArg)
	}
	part := uploadPart{name: u.Name, contentType: u.ContentType, reader: u.Reader}
	if part.contentType == "" && part.name != "" {
		part.contentType = typeForExtension(filepath.Ext(part.name))
	}
	if part.contentType == "" {
		br := bufio.NewReaderSize(u.Reader, sniffLen)
		head, err := br.Peek(sniffLen)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			return uploadPart{}, fmt.Errorf("read upload: %w", err)
		}
		part.contentType = http.DetectContentType(head)
		part.reader = br
	}
	if part.name == "" {
		part.name = uuid.NewString() + extensionFor(part.contentType)
	}
	return part, nil
}

// 常见类型固定扩展名；系统 mime 表里 image/jpeg 可能先返回 .jfif
var knownExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
	"video/avi":  ".avi",

	"video/quicktime":  ".mov",
	"video/x-matroska": ".mkv",
}

// 常见视频扩展名。内置 mime 表没有这些类型，而且 http.DetectContentType 识别不出
// QuickTime 与 Matroska，后端又只接受 video/* 的视频上传。
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
}

// typeForExtension 先查 videoTypes，再查系统 mime 表
func typeForExtension(ext string) string {
	if t, ok := videoTypes[strings.ToLower(ext)]; ok {
		return t
	}
	return mime.TypeByExtension(ext)
}

func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	if ext, ok := knownExtensions[mediaType]; ok {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
		return exts[0]
	}
	return ""
}
