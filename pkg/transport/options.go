package transport

import (
	"dominicbreuker/netpump/pkg/arena"
	"dominicbreuker/netpump/pkg/log"
	"dominicbreuker/netpump/pkg/metrics"
)

// Defaults shared by both backends.
const (
	DefaultMaxEventsPerTick = 128
	DefaultMaxBytesPerTick  = 256 * 1024
	DefaultMaxFrameSize     = 16 * 1024 * 1024
)

// Options configure a backend. Zero values select the defaults.
type Options struct {
	SessionID        int
	Subprotocols     []string
	MaxFrameSize     int
	MaxEventsPerTick int
	MaxBytesPerTick  int
	RecvBufferSize   int
	RecvMinFree      int

	Arena   *arena.Arena
	Logger  *log.Logger
	Metrics *metrics.Collector
}

// WithDefaults returns a copy of o with zero fields replaced by defaults.
func (o Options) WithDefaults() Options {
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = DefaultMaxFrameSize
	}
	if o.MaxEventsPerTick <= 0 {
		o.MaxEventsPerTick = DefaultMaxEventsPerTick
	}
	if o.MaxBytesPerTick <= 0 {
		o.MaxBytesPerTick = DefaultMaxBytesPerTick
	}
	if o.RecvBufferSize <= 0 {
		o.RecvBufferSize = arena.DefaultAccumulatorSize
	}
	if o.RecvMinFree <= 0 {
		o.RecvMinFree = arena.DefaultMinFree
	}
	if limit := arena.MaxMessageSize(o.RecvMinFree); o.MaxFrameSize > limit {
		o.MaxFrameSize = limit
	}
	if o.Arena == nil {
		o.Arena = arena.Default()
	}
	if o.Logger == nil {
		o.Logger = log.Discard()
	}
	return o
}
