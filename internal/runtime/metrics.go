package runtime

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RouterMetrics tracks dispatch statistics per channel and per handler tag.
type RouterMetrics struct {
	mu sync.RWMutex

	channels map[Channel]*ChannelMetrics

	eventsTotal        *prometheus.CounterVec
	rejectionsTotal    *prometheus.CounterVec
	handlerTotal       *prometheus.CounterVec
	handlerDuration    *prometheus.HistogramVec
	matchedHandlers    *prometheus.HistogramVec
	registeredHandlers prometheus.Gauge

	registerer prometheus.Registerer
	registered bool
}

// ChannelMetrics holds counters for one inbound channel.
type ChannelMetrics struct {
	Delivered     uint64                     `json:"delivered"`
	Rejected      uint64                     `json:"rejected"`
	Faults        uint64                     `json:"faults"`
	Replies       uint64                     `json:"replies"`
	Rejections    map[RejectionReason]uint64 `json:"rejections"`
	LastEventAt   time.Time                  `json:"last_event_at"`
	LastUpdatedAt time.Time                  `json:"last_updated_at"`
}

// RouterMetricsSnapshot is a point-in-time copy of RouterMetrics.
type RouterMetricsSnapshot struct {
	TotalDelivered uint64                      `json:"total_delivered"`
	TotalRejected  uint64                      `json:"total_rejected"`
	TotalFaults    uint64                      `json:"total_faults"`
	Channels       map[Channel]*ChannelMetrics `json:"channels"`
	CollectedAt    time.Time                   `json:"collected_at"`
}

func newRouterCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bmc",
			Subsystem: "messaging",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newRouterHistogramVec(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bmc",
			Subsystem: "messaging",
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

// NewRouterMetrics creates a collector. A nil registerer uses the Prometheus
// default registerer.
func NewRouterMetrics(registerer prometheus.Registerer) *RouterMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &RouterMetrics{
		channels:           make(map[Channel]*ChannelMetrics),
		registerer:         registerer,
		eventsTotal:        newRouterCounterVec("events_total", "Inbound events by channel and outcome", []string{"channel", "status"}),
		rejectionsTotal:    newRouterCounterVec("rejections_total", "Rejected inbound events by channel and reason", []string{"channel", "reason"}),
		handlerTotal:       newRouterCounterVec("handler_invocations_total", "Handler invocations by tag and outcome", []string{"tag", "outcome"}),
		handlerDuration:    newRouterHistogramVec("handler_duration_seconds", "Handler execution time", []float64{.0005, .001, .005, .01, .05, .1, .5, 1}, []string{"tag"}),
		matchedHandlers:    newRouterHistogramVec("matched_handlers", "Handlers whose selector accepted an event", []float64{0, 1, 2, 3, 5, 8}, []string{"channel"}),
		registeredHandlers: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "bmc", Subsystem: "messaging", Name: "registered_handlers", Help: "Handlers currently registered on the router"}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *RouterMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.eventsTotal,
		m.rejectionsTotal,
		m.handlerTotal,
		m.handlerDuration,
		m.matchedHandlers,
		m.registeredHandlers,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// RecordDelivery records the outcome of one dispatch.
func (m *RouterMetrics) RecordDelivery(result DeliveryResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	metrics := m.getOrCreateChannelMetrics(result.Channel)
	metrics.LastEventAt = now
	metrics.LastUpdatedAt = now

	m.eventsTotal.WithLabelValues(string(result.Channel), string(result.Status)).Inc()
	if result.Status == StatusRejected {
		metrics.Rejected++
		metrics.Rejections[result.Reason]++
		m.rejectionsTotal.WithLabelValues(string(result.Channel), string(result.Reason)).Inc()
		return
	}

	metrics.Delivered++
	metrics.Faults += uint64(len(result.Faults))
	if result.Reply != nil {
		metrics.Replies++
	}
	m.matchedHandlers.WithLabelValues(string(result.Channel)).Observe(float64(result.Matched))
}

// RecordHandler records one handler invocation.
func (m *RouterMetrics) RecordHandler(tag string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.handlerTotal.WithLabelValues(tag, outcome).Inc()
	m.handlerDuration.WithLabelValues(tag).Observe(duration.Seconds())
}

// SetRegisteredHandlers publishes the current registry size.
func (m *RouterMetrics) SetRegisteredHandlers(count int) {
	m.registeredHandlers.Set(float64(count))
}

// GetSnapshot returns a point-in-time snapshot of all channel metrics.
func (m *RouterMetrics) GetSnapshot() RouterMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := RouterMetricsSnapshot{
		Channels:    make(map[Channel]*ChannelMetrics, len(m.channels)),
		CollectedAt: time.Now(),
	}
	for ch, metrics := range m.channels {
		snapshot.Channels[ch] = metrics.clone()
		snapshot.TotalDelivered += metrics.Delivered
		snapshot.TotalRejected += metrics.Rejected
		snapshot.TotalFaults += metrics.Faults
	}
	return snapshot
}

// GetChannelMetrics returns a copy of the metrics for ch, or nil when no
// event was recorded on it.
func (m *RouterMetrics) GetChannelMetrics(ch Channel) *ChannelMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if metrics, ok := m.channels[ch]; ok {
		return metrics.clone()
	}
	return nil
}

func (m *RouterMetrics) getOrCreateChannelMetrics(ch Channel) *ChannelMetrics {
	if metrics, ok := m.channels[ch]; ok {
		return metrics
	}
	metrics := &ChannelMetrics{Rejections: make(map[RejectionReason]uint64)}
	m.channels[ch] = metrics
	return metrics
}

// Reset resets all metrics (useful for testing).
func (m *RouterMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.channels = make(map[Channel]*ChannelMetrics)
	m.eventsTotal.Reset()
	m.rejectionsTotal.Reset()
	m.handlerTotal.Reset()
	m.handlerDuration.Reset()
	m.matchedHandlers.Reset()
	m.registeredHandlers.Set(0)
}

func (c *ChannelMetrics) clone() *ChannelMetrics {
	out := *c
	out.Rejections = make(map[RejectionReason]uint64, len(c.Rejections))
	for reason, count := range c.Rejections {
		out.Rejections[reason] = count
	}
	return &out
}
