package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors of the service
type Metrics struct {
	registry *prometheus.Registry

	TicketsOpened          prometheus.Counter
	TicketTransitions      *prometheus.CounterVec
	InboundMessages        *prometheus.CounterVec
	OutboundMessages       *prometheus.CounterVec
	DeliveryFailures       *prometheus.CounterVec
	ActiveTicketViolations prometheus.Counter
	DuplicateUpdates       prometheus.Counter
	HTTPRequests           *prometheus.HistogramVec
}

// NewMetrics registers every collector on a private registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		TicketsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "desk",
			Name:      "tickets_opened_total",
			Help:      "Tickets created from inbound messages.",
		}),
		TicketTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "desk",
			Name:      "ticket_transitions_total",
			Help:      "Ticket status changes by target status.",
		}, []string{"status"}),
		InboundMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "desk",
			Name:      "inbound_messages_total",
			Help:      "Messages received from end users by kind.",
		}, []string{"kind"}),
		OutboundMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "desk",
			Name:      "outbound_messages_total",
			Help:      "Messages delivered to end users by kind.",
		}, []string{"kind"}),
		DeliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "desk",
			Name:      "delivery_failures_total",
			Help:      "Failed deliveries to end users by kind.",
		}, []string{"kind"}),
		ActiveTicketViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "desk",
			Name:      "active_ticket_violations_total",
			Help:      "Users found with more than one active ticket.",
		}),
		DuplicateUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "desk",
			Name:      "duplicate_updates_total",
			Help:      "Chat updates dropped because they were already handled.",
		}),
		HTTPRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "desk",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.TicketsOpened,
		m.TicketTransitions,
		m.InboundMessages,
		m.OutboundMessages,
		m.DeliveryFailures,
		m.ActiveTicketViolations,
		m.DuplicateUpdates,
		m.HTTPRequests,
	)
	return m
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// GinMiddleware records request latency per matched route
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
