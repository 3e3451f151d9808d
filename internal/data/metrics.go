package data

import (
	"context"
	"errors"

	"FootyCollect/pkg/fkapi"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// FkapiEvents lists the client events tracked by Metrics.
var FkapiEvents = []string{
	fkapi.EventRequest,
	fkapi.EventCacheHit,
	fkapi.EventStaleHit,
	fkapi.EventSuccess,
	fkapi.EventFailure,
	fkapi.EventCircuitOpen,
	fkapi.EventRateLimited,
	fkapi.EventDecodeError,
}

// NewPrometheusRegistry creates the registry served on /metrics.
func NewPrometheusRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Metrics implements fkapi.Metrics. Each event increments a per-process
// Prometheus counter and a counter in the shared cache.
type Metrics struct {
	cache  CacheClient
	events *prometheus.CounterVec
	logger *log.Helper
}

// NewMetrics registers the event counter on reg.
func NewMetrics(cache CacheClient, reg *prometheus.Registry, logger log.Logger) (*Metrics, error) {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "footycollect",
		Subsystem: "fkapi",
		Name:      "events_total",
		Help:      "FootballKitArchive client events by type.",
	}, []string{"event"})

	if err := reg.Register(events); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		events = are.ExistingCollector.(*prometheus.CounterVec)
	}

	return &Metrics{
		cache:  cache,
		events: events,
		logger: log.NewHelper(logger),
	}, nil
}

// Inc implements fkapi.Metrics.
func (m *Metrics) Inc(ctx context.Context, event string) {
	m.events.WithLabelValues(event).Inc()

	if m.cache == nil {
		return
	}
	if _, err := m.cache.Incr(ctx, BuildCacheKey(CacheKeyMetrics, event), 0); err != nil {
		m.logger.Debugw("msg", "failed to increment shared metric", "event", event, "error", err)
	}
}

// Snapshot returns the shared counters of every known event.
func (m *Metrics) Snapshot(ctx context.Context) map[string]int64 {
	out := make(map[string]int64, len(FkapiEvents))
	for _, event := range FkapiEvents {
		var n int64
		if m.cache != nil {
			if err := m.cache.Get(ctx, BuildCacheKey(CacheKeyMetrics, event), &n); err != nil && !errors.Is(err, ErrCacheNotFound) {
				m.logger.Warnw("msg", "failed to read shared metric", "event", event, "error", err)
			}
		}
		out[event] = n
	}
	return out
}
