// Package metrics 定义签名摘要服务的 Prometheus 指标
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Namespace 指标命名空间
	Namespace = "eidos_typeddata"
)

// 结果标签
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Digest Metrics - 摘要计算指标
var (
	// DigestsTotal 摘要计算总数
	DigestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "digests_total",
			Help:      "结构化数据摘要计算总数",
		},
		[]string{"primary_type", "result"},
	)

	// DigestDuration 摘要计算耗时
	DigestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "digest_duration_seconds",
			Help:      "结构化数据摘要计算耗时(秒)",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		},
		[]string{"primary_type"},
	)

	// EncoderCacheSize 已缓存的编码器数量
	EncoderCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "encoder_cache_size",
			Help:      "已缓存的类型编码器数量",
		},
	)
)

// Signature Metrics - 签名校验指标
var (
	// SignatureVerificationsTotal 签名校验总数
	SignatureVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "signature_verifications_total",
			Help:      "签名校验总数",
		},
		[]string{"kind", "result"},
	)
)

// Name Resolution Metrics - 名称解析指标
var (
	// NameResolutionsTotal 名称解析总数
	NameResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "name_resolutions_total",
			Help:      "名称解析总数",
		},
		[]string{"source", "result"},
	)

	// NameResolutionDuration 名称解析耗时
	NameResolutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "name_resolution_duration_seconds",
			Help:      "名称解析耗时(秒)",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"source"},
	)
)

// RecordDigest 记录一次摘要计算
func RecordDigest(primaryType string, err error, durationSeconds float64) {
	DigestsTotal.WithLabelValues(primaryType, result(err)).Inc()
	DigestDuration.WithLabelValues(primaryType).Observe(durationSeconds)
}

// RecordVerification 记录一次签名校验
func RecordVerification(kind string, err error) {
	SignatureVerificationsTotal.WithLabelValues(kind, result(err)).Inc()
}

// RecordNameResolution 记录一次名称解析
func RecordNameResolution(source string, err error, durationSeconds float64) {
	NameResolutionsTotal.WithLabelValues(source, result(err)).Inc()
	NameResolutionDuration.WithLabelValues(source).Observe(durationSeconds)
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// Handler 返回 Prometheus HTTP 处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer 计时器
type Timer struct {
	start time.Time
}

// NewTimer 创建计时器
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration 观察持续时间
func (t *Timer) ObserveDuration() time.Duration {
	return time.Since(t.start)
}

// ObserveSeconds 观察持续时间(秒)
func (t *Timer) ObserveSeconds() float64 {
	return t.ObserveDuration().Seconds()
}
