package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
//
// 所有 Record 方法对 nil 接收者安全，未启用监控时直接传 nil。
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 地址目录指标
	AddressesProvisioned prometheus.Counter
	AddressesDeleted     *prometheus.CounterVec
	NameConflicts        prometheus.Counter
	TokensReissued       prometheus.Counter

	// 令牌指标
	TokenRejections *prometheus.CounterVec
	StaleClaims     prometheus.Counter

	// 邮件指标
	MailPagesServed   prometheus.Counter
	AttachmentsServed prometheus.Counter
	MailsDeleted      prometheus.Counter

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// 限流指标
	RateLimitBlocks *prometheus.CounterVec
}

// NewMetrics 创建监控指标，每个实例使用独立的注册表
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		// HTTP 请求指标
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capmail_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "capmail_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "capmail_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		// 地址目录指标
		AddressesProvisioned: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "capmail_addresses_provisioned_total",
				Help: "Total number of addresses provisioned",
			},
		),

		AddressesDeleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capmail_addresses_deleted_total",
				Help: "Total number of addresses deleted",
			},
			[]string{"actor"},
		),

		NameConflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "capmail_address_name_conflicts_total",
				Help: "Provisioning attempts rejected because the name was taken",
			},
		),

		TokensReissued: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "capmail_tokens_reissued_total",
				Help: "Total number of tokens reissued by administrators",
			},
		),

		// 令牌指标
		TokenRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capmail_token_rejections_total",
				Help: "Total number of rejected capability tokens",
			},
			[]string{"reason"},
		),

		StaleClaims: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "capmail_stale_claims_total",
				Help: "Claims that referred to a deleted or unknown address",
			},
		),

		// 邮件指标
		MailPagesServed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "capmail_mail_pages_served_total",
				Help: "Total number of mail pages served",
			},
		),

		AttachmentsServed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "capmail_attachments_served_total",
				Help: "Total number of attachments served",
			},
		),

		MailsDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "capmail_mails_deleted_total",
				Help: "Total number of mails deleted with their address",
			},
		),

		// 错误指标
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capmail_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "capmail_panics_total",
				Help: "Total number of panics",
			},
		),

		// 限流指标
		RateLimitBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capmail_rate_limit_blocks_total",
				Help: "Total number of rate limit blocks",
			},
			[]string{"type"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, responseSize int64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordAddressProvisioned 记录地址创建
func (m *Metrics) RecordAddressProvisioned() {
	if m == nil {
		return
	}
	m.AddressesProvisioned.Inc()
}

// RecordAddressDeleted 记录地址删除，actor 为 self 或 admin
func (m *Metrics) RecordAddressDeleted(actor string, mails int64) {
	if m == nil {
		return
	}
	m.AddressesDeleted.WithLabelValues(actor).Inc()
	m.MailsDeleted.Add(float64(mails))
}

// RecordNameConflict 记录名字冲突
func (m *Metrics) RecordNameConflict() {
	if m == nil {
		return
	}
	m.NameConflicts.Inc()
}

// RecordTokenReissued 记录令牌重新签发
func (m *Metrics) RecordTokenReissued() {
	if m == nil {
		return
	}
	m.TokensReissued.Inc()
}

// RecordTokenRejected 记录令牌被拒绝
func (m *Metrics) RecordTokenRejected(reason string) {
	if m == nil {
		return
	}
	m.TokenRejections.WithLabelValues(reason).Inc()
}

// RecordStaleClaim 记录过期声明
func (m *Metrics) RecordStaleClaim() {
	if m == nil {
		return
	}
	m.StaleClaims.Inc()
}

// RecordMailPage 记录邮件列表查询
func (m *Metrics) RecordMailPage() {
	if m == nil {
		return
	}
	m.MailPagesServed.Inc()
}

// RecordAttachmentServed 记录附件读取
func (m *Metrics) RecordAttachmentServed() {
	if m == nil {
		return
	}
	m.AttachmentsServed.Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	if m == nil {
		return
	}
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流阻止
func (m *Metrics) RecordRateLimitBlock(limitType string) {
	if m == nil {
		return
	}
	m.RateLimitBlocks.WithLabelValues(limitType).Inc()
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
