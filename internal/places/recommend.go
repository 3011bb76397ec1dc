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
	"fmt"
	"net/http"
)

const (
	opRecommend = "recommend"
	opPlaceID   = "place_id"
)

// PlaceID 后端返回的 place_id，字符串原样保留，数字保留其字面值
type PlaceID string

func (id PlaceID) String() string { return string(id) }

// GetRecommendedPlaces 上传图片（multipart 字段 file）到 /upload/recommend，
// 原样返回 recommended_places 的 JSON 值
func (c *Client) GetRecommendedPlaces(ctx context.Context, image *Upload) (json.RawMessage, error) {
	var places json.RawMessage
	err := c.do(ctx, call{
		op:        opRecommend,
		method:    http.MethodPost,
		path:      "/upload/recommend",
		upload:    image,
		multipart: true,
	}, func(body []byte) error {
		obj, err := decodeObject(opRecommend, body, "recommended_places")
		if err != nil {
			return err
		}
		places = obj["recommended_places"]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return places, nil
}

// GetPlaceID 按地名查询 place_id：GET /upload/places/{place}，地名整体作为一个路径段转义。
// 空地名原样发送，由后端拒绝。
func (c *Client) GetPlaceID(ctx context.Context, place string) (PlaceID, error) {
	var id PlaceID
	err := c.do(ctx, call{
		op:     opPlaceID,
		method: http.MethodGet,
		path:   "/upload/places/" + escapePathSegment(place),
	}, func(body []byte) error {
		obj, err := decodeObject(opPlaceID, body, "place_id")
		if err != nil {
			return err
		}
		id, err = parsePlaceID(obj["place_id"])
		if err != nil {
			return &MalformedResponseError{Op: opPlaceID, Field: "place_id", Err: err}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func parsePlaceID(raw json.RawMessage) (PlaceID, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return PlaceID(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return PlaceID(n.String()), nil
	}
	return "", fmt.Errorf("want string or number, got %s", string(raw))
}
