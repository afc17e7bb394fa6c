package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics are scraped from /metrics.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// AuthMetrics count login handshake outcomes per step, e.g.
// step="callback" outcome="replayed_state".
type AuthMetrics struct {
	flow *prometheus.CounterVec
}

func NewHTTPMetrics(reg prometheus.Registerer) (*HTTPMetrics, error) {
	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authr_http_requests_total",
		Help: "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"}))
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "authr_http_request_duration_seconds",
		Help:    "HTTP request latency by route and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"}))
	if err != nil {
		return nil, err
	}
	return &HTTPMetrics{requests: requests, duration: duration}, nil
}

func NewAuthMetrics(reg prometheus.Registerer) (*AuthMetrics, error) {
	flow, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authr_auth_flow_total",
		Help: "Login handshake outcomes by step.",
	}, []string{"step", "outcome"}))
	if err != nil {
		return nil, err
	}
	return &AuthMetrics{flow: flow}, nil
}

func (m *AuthMetrics) Record(step, outcome string) {
	if m == nil {
		return
	}
	m.flow.WithLabelValues(step, outcome).Inc()
}

// GinMiddleware records one observation per request, labelled by the matched
// route so path parameters do not explode cardinality.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// register adds c to reg, reusing an identical collector that is already
// registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}
