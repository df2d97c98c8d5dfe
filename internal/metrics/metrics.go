// Package metrics holds the prometheus collectors for datastore traffic.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Ratio1/cosmo_sdk_go/internal/httpx"
)

// Collectors groups the request metrics for one side of the wire.
type Collectors struct {
	RequestTotal    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ErrorTotal      *prometheus.CounterVec
}

// NewClientCollectors creates the collectors recorded by the SDK client and
// registers them with reg when it is non-nil. Calling it again with the same
// registry returns collectors bound to the already registered series.
func NewClientCollectors(reg prometheus.Registerer) *Collectors {
	return newCollectors("cosmo_client", reg)
}

// NewServerCollectors creates the collectors recorded by the sandbox server.
func NewServerCollectors(reg prometheus.Registerer) *Collectors {
	return newCollectors("cosmo_sandbox", reg)
}

func newCollectors(namespace string, reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		RequestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of datastore HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Datastore HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ErrorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transport_errors_total",
				Help:      "Requests that failed without an HTTP response",
			},
			[]string{"method", "route"},
		),
	}
	if reg != nil {
		c.RequestTotal = register(reg, c.RequestTotal)
		c.RequestDuration = register(reg, c.RequestDuration)
		c.ErrorTotal = register(reg, c.ErrorTotal)
	}
	return c
}

// register adds col to reg. When an identical collector is already
// registered, that one is returned so repeated clients share series.
func register[C prometheus.Collector](reg prometheus.Registerer, col C) C {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return col
}

// Observe records one request.
func (c *Collectors) Observe(method, route string, status int, elapsed time.Duration, err error) {
	if c == nil {
		return
	}
	if status == 0 {
		c.ErrorTotal.WithLabelValues(method, route).Inc()
	} else {
		c.RequestTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	}
	c.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Observer adapts c to the httpx per-attempt hook.
func (c *Collectors) Observer() httpx.Observer {
	return c.Observe
}
