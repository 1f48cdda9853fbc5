package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics 服务端指标
// 每个 Server 持有独立的 Registry，测试之间互不干扰
type Metrics struct {
	registry *prometheus.Registry

	// requestsTotal 按路由和状态码统计的请求数
	requestsTotal *prometheus.CounterVec

	// requestDuration 请求处理耗时
	requestDuration *prometheus.HistogramVec

	// expAwardedTotal 发放的 EXP 总量
	expAwardedTotal prometheus.Counter

	// flagsSetTotal 写入的进度标记数
	flagsSetTotal prometheus.Counter

	// itemsAwardedTotal 按道具名统计的发放次数
	itemsAwardedTotal *prometheus.CounterVec
}

// NewMetrics 创建并注册指标
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "closetkingdom_http_requests_total",
				Help: "Total number of API requests by route and status code",
			},
			[]string{"route", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "closetkingdom_http_request_duration_seconds",
				Help:    "Duration of API request handling",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		expAwardedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "closetkingdom_exp_awarded_total",
				Help: "Total EXP awarded to all users",
			},
		),
		flagsSetTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "closetkingdom_flags_set_total",
				Help: "Total number of progress flags written",
			},
		),
		itemsAwardedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "closetkingdom_items_awarded_total",
				Help: "Total number of items awarded by item name",
			},
			[]string{"item"},
		),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.expAwardedTotal,
		m.flagsSetTotal,
		m.itemsAwardedTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
