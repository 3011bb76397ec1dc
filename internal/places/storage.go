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
	"context"
	"encoding/json"
	"net/http"
)

const (
	opUploadImage = "upload_image"
	opUploadVideo = "upload_video"
)

// StoredFile 后端保存上传文件后的回执
type StoredFile struct {
	Message  string `json:"message"`
	FilePath string `json:"file_path"`
}

// UploadImage 上传图片到 /upload/image，仅保存不分析
func (c *Client) UploadImage(ctx context.Context, image *Upload) (*StoredFile, error) {
	return c.store(ctx, opUploadImage, "/upload/image", image)
}

// UploadVideo 上传视频到 /upload/video。后端只接受 video/* 类型，否则返回 400。
func (c *Client) UploadVideo(ctx context.Context, video *Upload) (*StoredFile, error) {
	return c.store(ctx, opUploadVideo, "/upload/video", video)
}

func (c *Client) store(ctx context.Context, op, path string, file *Upload) (*StoredFile, error) {
	var out StoredFile
	err := c.do(ctx, call{
		op:        op,
		method:    http.MethodPost,
		path:      path,
		upload:    file,
		multipart: true,
	}, func(body []byte) error {
		obj, err := decodeObject(op, body, "file_path")
		if err != nil {
			return err
		}
		if err := json.Unmarshal(obj["file_path"], &out.FilePath); err != nil {
			return &MalformedResponseError{Op: op, Field: "file_path", Err: err}
		}
		if msg, ok := obj["message"]; ok && !isNull(msg) {
			if err := json.Unmarshal(msg, &out.Message); err != nil {
				return &MalformedResponseError{Op: op, Field: "message", Err: err}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
