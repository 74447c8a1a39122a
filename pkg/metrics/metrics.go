// Package metrics exposes Prometheus counters for the transports, the
// dispatch queue and the session state machine. A nil *Collector is valid
// and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the Prometheus metrics of one or more clients.
type Collector struct {
	FramesSent     *prometheus.CounterVec
	FramesReceived *prometheus.CounterVec
	BytesSent      *prometheus.CounterVec
	BytesReceived  *prometheus.CounterVec

	EventsDispatched *prometheus.CounterVec
	HandlerPanics    *prometheus.CounterVec
	TickCapHits      *prometheus.CounterVec
	BufferGrows      *prometheus.CounterVec

	StateTransitions *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them with reg. A nil reg
// leaves them unregistered, which is what tests usually want.
func NewCollector(namespace string, reg prometheus.Registerer) (*Collector, error) {
	if namespace == "" {
		namespace = "netpump"
	}

	backend := []string{"backend"}
	c := &Collector{
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames handed to the socket or bridge",
		}, backend),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Complete frames delivered to the frame sink",
		}, backend),
		BytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Frame bytes handed to the socket or bridge",
		}, backend),
		BytesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Frame bytes delivered to the frame sink",
		}, backend),
		EventsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dispatched_total",
			Help:      "Pending events executed by the pump",
		}, backend),
		HandlerPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_panics_total",
			Help:      "Event or frame handlers that panicked and were recovered",
		}, backend),
		TickCapHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_cap_hits_total",
			Help:      "Ticks that stopped early because an event or byte cap was reached",
		}, []string{"backend", "cap"}),
		BufferGrows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receive_buffer_grows_total",
			Help:      "Grow-and-copy cycles of the receive accumulator",
		}, backend),
		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Session state changes by target state",
		}, []string{"state"}),
	}

	if reg != nil {
		for _, col := range c.all() {
			if err := reg.Register(col); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

func (c *Collector) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.FramesSent, c.FramesReceived, c.BytesSent, c.BytesReceived,
		c.EventsDispatched, c.HandlerPanics, c.TickCapHits, c.BufferGrows,
		c.StateTransitions,
	}
}

// FrameSent records one outbound frame of n bytes.
func (c *Collector) FrameSent(backend string, n int) {
	if c == nil {
		return
	}
	c.FramesSent.WithLabelValues(backend).Inc()
	c.BytesSent.WithLabelValues(backend).Add(float64(n))
}

// FrameReceived records one inbound frame of n bytes.
func (c *Collector) FrameReceived(backend string, n int) {
	if c == nil {
		return
	}
	c.FramesReceived.WithLabelValues(backend).Inc()
	c.BytesReceived.WithLabelValues(backend).Add(float64(n))
}

// EventsRun records n events executed by one drain.
func (c *Collector) EventsRun(backend string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.EventsDispatched.WithLabelValues(backend).Add(float64(n))
}

// HandlerPanic records one recovered panic.
func (c *Collector) HandlerPanic(backend string) {
	if c == nil {
		return
	}
	c.HandlerPanics.WithLabelValues(backend).Inc()
}

// TickCapHit records a tick that stopped at a cap ("events" or "bytes").
func (c *Collector) TickCapHit(backend, which string) {
	if c == nil {
		return
	}
	c.TickCapHits.WithLabelValues(backend, which).Inc()
}

// BufferGrow records one accumulator grow.
func (c *Collector) BufferGrow(backend string) {
	if c == nil {
		return
	}
	c.BufferGrows.WithLabelValues(backend).Inc()
}

// StateChanged records a session transition into state.
func (c *Collector) StateChanged(state string) {
	if c == nil {
		return
	}
	c.StateTransitions.WithLabelValues(state).Inc()
}
