// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/BaSui01/speechflow/speech/async"
	"github.com/BaSui01/speechflow/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 合成指标
	synthesisTotal      *prometheus.CounterVec
	synthesisDuration   *prometheus.HistogramVec
	synthesisTextLength *prometheus.HistogramVec
	synthesisAudioBytes *prometheus.HistogramVec

	// 上游调用指标
	providerCallsTotal   *prometheus.CounterVec
	providerCallDuration *prometheus.HistogramVec
	providerRetries      *prometheus.CounterVec
	rateLimitWait        prometheus.Histogram

	// 异步任务指标
	asyncJobsTotal   *prometheus.CounterVec
	asyncJobPolls    prometheus.Histogram
	asyncJobDuration prometheus.Histogram

	// 音色克隆指标
	voiceClonesTotal *prometheus.CounterVec

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 合成指标
	c.synthesisTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_total",
			Help:      "Total number of speech synthesis calls",
		},
		[]string{"mode", "status"},
	)

	c.synthesisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_duration_seconds",
			Help:      "Speech synthesis duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"mode"},
	)

	c.synthesisTextLength = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_text_length_chars",
			Help:      "Length of synthesized text in characters",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
		},
		[]string{"mode"},
	)

	c.synthesisAudioBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_audio_bytes",
			Help:      "Size of synthesized audio in bytes",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		},
		[]string{"mode"},
	)

	// 上游调用指标
	c.providerCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Total number of upstream network attempts",
		},
		[]string{"op", "result"},
	)

	c.providerCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Upstream attempt duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"op"},
	)

	c.providerRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_retries_total",
			Help:      "Total number of upstream retries by attempt and error code",
		},
		[]string{"attempt", "code"},
	)

	c.rateLimitWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent waiting for a rate limit token",
			Buckets:   []float64{0, 0.1, 0.5, 1, 5, 15, 30, 60},
		},
	)

	// 异步任务指标
	c.asyncJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "async_jobs_total",
			Help:      "Total number of finished async synthesis jobs",
		},
		[]string{"status"},
	)

	c.asyncJobPolls = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "async_job_polls",
			Help:      "Number of status polls per async job",
			Buckets:   prometheus.LinearBuckets(1, 5, 10),
		},
	)

	c.asyncJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "async_job_duration_seconds",
			Help:      "Async job duration from submission to terminal state",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	c.voiceClonesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_clones_total",
			Help:      "Total number of voice clone attempts",
		},
		[]string{"status"},
	)

	// 缓存指标
	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// 数据库指标
	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🔊 合成指标记录
// =============================================================================

// RecordSynthesis 记录一次合成
func (c *Collector) RecordSynthesis(mode, status string, duration time.Duration, textLength, audioBytes int) {
	c.synthesisTotal.WithLabelValues(mode, status).Inc()
	c.synthesisDuration.WithLabelValues(mode).Observe(duration.Seconds())
	c.synthesisTextLength.WithLabelValues(mode).Observe(float64(textLength))
	if audioBytes > 0 {
		c.synthesisAudioBytes.WithLabelValues(mode).Observe(float64(audioBytes))
	}
}

// ObserveProviderCall 记录一次上游尝试，签名与 gate.CallObserver 一致
func (c *Collector) ObserveProviderCall(op string, err error, elapsed time.Duration) {
	c.providerCallsTotal.WithLabelValues(op, errorResult(err)).Inc()
	c.providerCallDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveRetry 记录一次退避重试，签名与 retry.Policy.OnRetry 一致
func (c *Collector) ObserveRetry(attempt int, err error, _ time.Duration) {
	c.providerRetries.WithLabelValues(strconv.Itoa(attempt), errorResult(err)).Inc()
}

// ObserveRateLimitWait 记录限流等待时间
func (c *Collector) ObserveRateLimitWait(wait time.Duration) {
	c.rateLimitWait.Observe(wait.Seconds())
}

// ObserveAsyncJob 记录异步任务结束
func (c *Collector) ObserveAsyncJob(status async.Status, polls int, elapsed time.Duration) {
	c.asyncJobsTotal.WithLabelValues(string(status)).Inc()
	c.asyncJobPolls.Observe(float64(polls))
	c.asyncJobDuration.Observe(elapsed.Seconds())
}

// RecordVoiceClone 记录一次克隆
func (c *Collector) RecordVoiceClone(err error) {
	c.voiceClonesTotal.WithLabelValues(errorResult(err)).Inc()
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// errorResult 将错误归类为标签值
func errorResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline"
	}
	if code := types.GetErrorCode(err); code != "" {
		return string(code)
	}
	return "error"
}
