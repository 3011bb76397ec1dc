package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，客户端调用时更新，CLI 退出前导出
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		RequestDuration, RequestTotal, UploadBytesTotal,
	)
}

// 请求结果标签取值
const (
	OutcomeSuccess   = "success"
	OutcomeRemote    = "remote_error"
	OutcomeMalformed = "malformed"
	OutcomeTransport = "transport_error"
)

// RequestDuration 后端请求耗时（秒），含响应体读取
var RequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "placelens_client_request_duration_seconds",
		Help:    "后端请求耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"op"},
)

// RequestTotal 后端请求总数（按结果）
var RequestTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "placelens_client_requests_total",
		Help: "后端请求总数",
	},
	[]string{"op", "outcome"}, // success | remote_error | malformed | transport_error
)

// UploadBytesTotal multipart 上传字节数
var UploadBytesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "placelens_client_upload_bytes_total",
		Help: "上传文件字节总数",
	},
	[]string{"op"},
)

// ObserveRequest 记录一次请求的结果与耗时
func ObserveRequest(op, outcome string, elapsed time.Duration) {
	RequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	RequestTotal.WithLabelValues(op, outcome).Inc()
}

// WritePrometheus 将 Prometheus 文本格式写入 w
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

// WriteTextfile 以 textfile collector 格式写入 path（先写临时文件再 rename）
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, DefaultRegistry)
}
