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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const opVisionAnalyze = "vision_analyze"

// VisionImageMIME 标注图的 MIME 类型。后端固定用 JPEG 编码标注图，这里不做探测。
const VisionImageMIME = "image/jpeg"

// VisionAnalysis /vision/analyze 的结果
type VisionAnalysis struct {
	// Captions 后端返回的 captions，逐项原样保留
	Captions []json.RawMessage `json:"captions"`
	// Image 标注后的图片，data:image/jpeg;base64,<payload>，可直接用作 img src
	Image string `json:"image"`
}

// Caption 后端 dense caption 的结构
type Caption struct {
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"bounding_box"`
}

// BoundingBox 像素坐标，左上角 (X, Y)，宽 W 高 H
type BoundingBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// AnalyzeImage 上传图片到 /vision/analyze，返回 captions 与 data URI 形式的标注图
func (c *Client) AnalyzeImage(ctx context.Context, image *Upload) (*VisionAnalysis, error) {
	var out VisionAnalysis
	err := c.do(ctx, call{
		op:        opVisionAnalyze,
		method:    http.MethodPost,
		path:      "/vision/analyze",
		upload:    image,
		multipart: true,
	}, func(body []byte) error {
		obj, err := decodeObject(opVisionAnalyze, body, "captions", "image")
		if err != nil {
			return err
		}
		if err := json.Unmarshal(obj["captions"], &out.Captions); err != nil {
			return &MalformedResponseError{Op: opVisionAnalyze, Field: "captions", Err: err}
		}
		var payload string
		if err := json.Unmarshal(obj["image"], &payload); err != nil {
			return &MalformedResponseError{Op: opVisionAnalyze, Field: "image", Err: err}
		}
		out.Image = dataURI(VisionImageMIME, payload)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DenseCaptions 把 Captions 解析为结构化的 Caption
func (v *VisionAnalysis) DenseCaptions() ([]Caption, error) {
	caps := make([]Caption, 0, len(v.Captions))
	for i, raw := range v.Captions {
		var c Caption
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("caption %d: %w", i, err)
		}
		caps = append(caps, c)
	}
	return caps, nil
}

// ImageBytes 解码 Image 中的 base64 图片数据
func (v *VisionAnalysis) ImageBytes() ([]byte, error) {
	_, payload, ok := strings.Cut(v.Image, ";base64,")
	if !ok || !strings.HasPrefix(v.Image, "data:") {
		return nil, fmt.Errorf("not a base64 data URI")
	}
	return base64.StdEncoding.DecodeString(payload)
}

func dataURI(mimeType, base64Payload string) string {
	return "data:" + mimeType + ";base64," + base64Payload
}
