package config

import (
	"fmt"
	"net/url"
	"time"

	"dominicbreuker/netpump/pkg/arena"
)

// Backends.
const (
	BackendThreaded = "threaded"
	BackendPolling  = "polling"
)

// WebSocket drivers used by the threaded backend and the native bridge.
const (
	DriverCoder   = "coder"
	DriverGorilla = "gorilla"
)

// Client configures a netpump client. Zero numeric fields select the
// transport defaults.
type Client struct {
	URL              string        `koanf:"url"`
	Backend          string        `koanf:"backend"`
	Driver           string        `koanf:"driver"`
	Subprotocols     []string      `koanf:"subprotocols"`
	SessionID        int           `koanf:"session_id"`
	MaxFrameSize     int           `koanf:"max_frame_size"`
	MaxEventsPerTick int           `koanf:"max_events_per_tick"`
	MaxBytesPerTick  int           `koanf:"max_bytes_per_tick"`
	RecvBufferSize   int           `koanf:"recv_buffer_size"`
	RecvMinFree      int           `koanf:"recv_min_free"`
	DialTimeout      time.Duration `koanf:"dial_timeout"`
	Verbose          bool          `koanf:"verbose"`
	MetricsAddr      string        `koanf:"metrics_addr"`
	TLSKey           string        `koanf:"tls_key"`
	Insecure         bool          `koanf:"insecure"`

	Deps *Dependencies `koanf:"-"`
}

// Default returns a client configuration with the default backend and
// driver.
func Default() Client {
	return Client{
		Backend:     BackendThreaded,
		Driver:      DriverCoder,
		DialTimeout: 10 * time.Second,
	}
}

// Validate checks c and returns every problem found.
func (c *Client) Validate() []error {
	var errors []error

	if c.URL == "" {
		errors = append(errors, fmt.Errorf("a URL is required"))
	} else if u, err := url.Parse(c.URL); err != nil {
		errors = append(errors, fmt.Errorf("invalid URL %q: %s", c.URL, err))
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		errors = append(errors, fmt.Errorf("URL scheme must be ws or wss, got %q", u.Scheme))
	}

	if c.Backend != BackendThreaded && c.Backend != BackendPolling {
		errors = append(errors, fmt.Errorf("'--backend' must be one of %s, %s", BackendThreaded, BackendPolling))
	}
	if c.Driver != DriverCoder && c.Driver != DriverGorilla {
		errors = append(errors, fmt.Errorf("'--driver' must be one of %s, %s", DriverCoder, DriverGorilla))
	}

	for _, f := range []struct {
		flag  string
		value int
	}{
		{"--max-frame-size", c.MaxFrameSize},
		{"--max-events-per-tick", c.MaxEventsPerTick},
		{"--max-bytes-per-tick", c.MaxBytesPerTick},
		{"--recv-buffer-size", c.RecvBufferSize},
		{"--recv-min-free", c.RecvMinFree},
	} {
		if f.value < 0 {
			errors = append(errors, fmt.Errorf("'%s' must not be negative", f.flag))
		}
	}

	if limit := arena.MaxMessageSize(c.RecvMinFree); c.MaxFrameSize > limit {
		errors = append(errors, fmt.Errorf("'--max-frame-size' must be at most %d", limit))
	}
	if c.RecvBufferSize > arena.MaxClassSize {
		errors = append(errors, fmt.Errorf("'--recv-buffer-size' must be at most %d", arena.MaxClassSize))
	}
	if c.RecvBufferSize > 0 && c.RecvMinFree >= c.RecvBufferSize {
		errors = append(errors, fmt.Errorf("'--recv-min-free' must be smaller than '--recv-buffer-size'"))
	}
	if c.DialTimeout < 0 {
		errors = append(errors, fmt.Errorf("'--dial-timeout' must not be negative"))
	}
	if c.TLSKey != "" && c.Insecure {
		errors = append(errors, fmt.Errorf("'--key' and '--insecure' cannot be combined"))
	}

	return errors
}

// Server configures the echo server.
type Server struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	MaxConns     int    `koanf:"max_conns"`
	MaxFrameSize int    `koanf:"max_frame_size"`
	Metrics      bool   `koanf:"metrics"`
	Verbose      bool   `koanf:"verbose"`
	TLS          bool   `koanf:"tls"`
	TLSKey       string `koanf:"tls_key"`
}

// Validate checks the listen address, limits and TLS settings.
func (c *Server) Validate() []error {
	var errors []error

	if err := validatePort(c.Port); err != nil {
		errors = append(errors, fmt.Errorf("'--port': %s", err))
	}
	if c.MaxConns < 0 {
		errors = append(errors, fmt.Errorf("'--max-conns' must not be negative"))
	}
	if c.MaxFrameSize < 0 {
		errors = append(errors, fmt.Errorf("'--max-frame-size' must not be negative"))
	}
	if c.TLSKey != "" && !c.TLS {
		errors = append(errors, fmt.Errorf("'--key' requires a wss listen address"))
	}

	return errors
}
