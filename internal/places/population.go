package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	perrors "placelens/pkg/errors"
)

const (
	opRegionPopulation = "region_population"
	opGenderPopulation = "gender_population"
	opAgeMinPopulation = "age_min_population"
	opAgeMaxPopulation = "age_max_population"
)

// Population /populations/region/{region_id} 返回的一条人口快照（5 分钟粒度）
type Population struct {
	Datetime          Timestamp `json:"datetime"`
	RegionID          *string   `json:"region_id,omitempty"`
	MaleRate          *float64  `json:"male_rate,omitempty"`
	FemaleRate        *float64  `json:"female_rate,omitempty"`
	AreaCongest       *string   `json:"area_congest,omitempty"`
	CongestionMessage *string   `json:"congestion_message,omitempty"`
	Gen10             *float64  `json:"gen_10,omitempty"`
	Gen20             *float64  `json:"gen_20,omitempty"`
	Gen30             *float64  `json:"gen_30,omitempty"`
	Gen40             *float64  `json:"gen_40,omitempty"`
	Gen50             *float64  `json:"gen_50,omitempty"`
	Gen60             *float64  `json:"gen_60,omitempty"`
	Gen70             *float64  `json:"gen_70,omitempty"`
	MinPopulation     *int      `json:"min_population,omitempty"`
	MaxPopulation     *int      `json:"max_population,omitempty"`
}

// Page 分页参数；零值不发送，由后端取默认（limit 40，offset 0）
type Page struct {
	Limit  int
	Offset int
}

func (p Page) query() map[string]string {
	return p.addTo(map[string]string{})
}

func (p Page) addTo(q map[string]string) map[string]string {
	if p.Limit != 0 {
		q["limit"] = strconv.Itoa(p.Limit)
	}
	if p.Offset != 0 {
		q["offset"] = strconv.Itoa(p.Offset)
	}
	return q
}

// GetRegionPopulation 查询某个 region 的人口快照，最新的在前
func (c *Client) GetRegionPopulation(ctx context.Context, regionID string, page Page) ([]Population, error) {
	var rows []Population
	err := c.do(ctx, call{
		op:     opRegionPopulation,
		method: http.MethodGet,
		path:   "/populations/region/" + escapePathSegment(regionID),
		query:  page.query(),
	}, decodeRows(opRegionPopulation, &rows))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// GenderPopulation 按性别折算的人口区间（rate * population / 100），缺数据时为 nil
type GenderPopulation struct {
	Datetime            Timestamp `json:"datetime"`
	RegionID            *string   `json:"region_id,omitempty"`
	MaleMinPopulation   *float64  `json:"male_min_population,omitempty"`
	MaleMaxPopulation   *float64  `json:"male_max_population,omitempty"`
	FemaleMinPopulation *float64  `json:"female_min_population,omitempty"`
	FemaleMaxPopulation *float64  `json:"female_max_population,omitempty"`
}

// AgeGroupPopulation 按年龄段折算的人口数，基数为 min_population 或 max_population
type AgeGroupPopulation struct {
	Datetime Timestamp `json:"datetime"`
	RegionID *string   `json:"region_id,omitempty"`
	Gen10    *float64  `json:"gen_10,omitempty"`
	Gen20    *float64  `json:"gen_20,omitempty"`
	Gen30    *float64  `json:"gen_30,omitempty"`
	Gen40    *float64  `json:"gen_40,omitempty"`
	Gen50    *float64  `json:"gen_50,omitempty"`
	Gen60    *float64  `json:"gen_60,omitempty"`
	Gen70    *float64  `json:"gen_70,omitempty"`
}

// clockLayout 后端按一天中的时刻比较 start_time / end_time
const clockLayout = "15:04:05"

// TimeRange 一天中的时刻范围，格式 HH:MM:SS。
// 两端都为空时由后端取最近 60 分钟；只给一端时另一端也由后端补齐。
type TimeRange struct {
	Start string
	End   string
}

// ClockRange 用两个时间点的时刻部分构造 TimeRange
func ClockRange(start, end time.Time) TimeRange {
	return TimeRange{Start: start.Format(clockLayout), End: end.Format(clockLayout)}
}

func (r TimeRange) addTo(q map[string]string) (map[string]string, error) {
	for _, kv := range [][2]string{{"start_time", r.Start}, {"end_time", r.End}} {
		key, v := kv[0], kv[1]
		if v == "" {
			continue
		}
		if _, err := time.Parse(clockLayout, v); err != nil {
			return nil, fmt.Errorf("%w: %s %q, want HH:MM:SS", perrors.ErrInvalidArg, key, v)
		}
		q[key] = v
	}
	return q, nil
}

// GetGenderPopulation 查询 region 在时刻范围内的性别人口数据
func (c *Client) GetGenderPopulation(ctx context.Context, regionID string, r TimeRange) ([]GenderPopulation, error) {
	q, err := r.addTo(map[string]string{"region_id": regionID})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opGenderPopulation, err)
	}
	var rows []GenderPopulation
	err = c.do(ctx, call{
		op:     opGenderPopulation,
		method: http.MethodGet,
		path:   "/populations/gender_population_data",
		query:  q,
	}, decodeRows(opGenderPopulation, &rows))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// GetAgeMinPopulation 按 min_population 折算的各年龄段人口，最新的在前
func (c *Client) GetAgeMinPopulation(ctx context.Context, regionID string, page Page) ([]AgeGroupPopulation, error) {
	return c.ageGroups(ctx, opAgeMinPopulation, "/populations/age_min_population_data", regionID, page)
}

// GetAgeMaxPopulation 按 max_population 折算的各年龄段人口，最新的在前
func (c *Client) GetAgeMaxPopulation(ctx context.Context, regionID string, page Page) ([]AgeGroupPopulation, error) {
	return c.ageGroups(ctx, opAgeMaxPopulation, "/populations/age_max_population_data", regionID, page)
}

func (c *Client) ageGroups(ctx context.Context, op, path, regionID string, page Page) ([]AgeGroupPopulation, error) {
	var rows []AgeGroupPopulation
	err := c.do(ctx, call{
		op:     op,
		method: http.MethodGet,
		path:   path,
		query:  page.addTo(map[string]string{"region_id": regionID}),
	}, decodeRows(op, &rows))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// decodeRows 要求响应体是 JSON 数组
func decodeRows[T any](op string, rows *[]T) func([]byte) error {
	return func(body []byte) error {
		if err := json.Unmarshal(body, rows); err != nil {
			return &MalformedResponseError{Op: op, Err: err}
		}
		return nil
	}
}

// Timestamp 兼容后端不带时区的 ISO 时间（按 UTC 解析）与 RFC 3339
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON 实现 json.Unmarshaler；null 保留零值
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unsupported datetime %q", s)
}

// MarshalJSON 实现 json.Marshaler，输出 RFC 3339；零值输出 null
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}
