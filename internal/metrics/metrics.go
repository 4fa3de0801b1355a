// Package metrics exposes Prometheus instruments for the API: request
// counts and latency per route, plus engagement and workflow events.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mollik/internal/authz"
	"mollik/internal/models"
)

const namespace = "mollik"

// Metrics holds the registered instruments.
type Metrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	views       prometheus.Counter
	likes       *prometheus.CounterVec
	visitors    prometheus.Counter
	transitions *prometheus.CounterVec
	handler     http.Handler
}

// New creates the instruments and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		views: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_views_total",
			Help:      "View increments applied to published items.",
		}),
		likes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "like_toggles_total",
			Help:      "Like toggles by resulting state.",
		}, []string{"state"}),
		visitors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visitor_pings_total",
			Help:      "Visitor pings received, counted or not.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Applied status transitions by kind and edge.",
		}, []string{"kind", "from", "to"}),
	}
	reg.MustRegister(m.requests, m.duration, m.views, m.likes, m.visitors, m.transitions)
	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return m.handler
}

// Middleware records every request under its chi route pattern, so
// /api/poem/bidrohi and /api/song/x share the "/api/{kind}/{slug}" series.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// StatusChanged counts an applied transition. It matches the workflow
// listener signature and never fails.
func (m *Metrics) StatusChanged(_ context.Context, item *models.ContentItem, tr models.StatusTransition) error {
	m.transitions.WithLabelValues(string(item.Kind), string(tr.From), string(tr.To)).Inc()
	return nil
}

// Counters is the engagement API being instrumented.
type Counters interface {
	IncrementView(ctx context.Context, id uuid.UUID) (int64, error)
	ToggleLike(ctx context.Context, actor authz.Actor, id uuid.UUID, requestKey string) (models.LikeResult, error)
	LikeState(ctx context.Context, userID, id uuid.UUID) (models.LikeResult, error)
	RecordVisitor(ctx context.Context, token string) (models.VisitorStats, error)
	VisitorTotals(ctx context.Context) (models.VisitorStats, error)
}

// InstrumentedCounters counts successful engagement writes.
type InstrumentedCounters struct {
	Counters
	m *Metrics
}

// Counters wraps c so its successful writes are counted.
func (m *Metrics) Counters(c Counters) *InstrumentedCounters {
	return &InstrumentedCounters{Counters: c, m: m}
}

func (c *InstrumentedCounters) IncrementView(ctx context.Context, id uuid.UUID) (int64, error) {
	n, err := c.Counters.IncrementView(ctx, id)
	if err == nil {
		c.m.views.Inc()
	}
	return n, err
}

func (c *InstrumentedCounters) ToggleLike(ctx context.Context, actor authz.Actor, id uuid.UUID, requestKey string) (models.LikeResult, error) {
	res, err := c.Counters.ToggleLike(ctx, actor, id, requestKey)
	if err == nil {
		state := "unliked"
		if res.Liked {
			state = "liked"
		}
		c.m.likes.WithLabelValues(state).Inc()
	}
	return res, err
}

func (c *InstrumentedCounters) RecordVisitor(ctx context.Context, token string) (models.VisitorStats, error) {
	stats, err := c.Counters.RecordVisitor(ctx, token)
	if err == nil {
		c.m.visitors.Inc()
	}
	return stats, err
}
