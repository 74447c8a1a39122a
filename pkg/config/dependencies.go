package config

import (
	"fmt"
	"io"
	"os"

	"dominicbreuker/netpump/pkg/bridge"
	"dominicbreuker/netpump/pkg/crypto"
	"dominicbreuker/netpump/pkg/transport/ws"
)

// Dependencies contains injectable dependencies for testing and customization.
// All fields are optional and will use default implementations if nil.
type Dependencies struct {
	Dialer ws.Dialer
	Bridge bridge.Bridge
	Stdin  StdinFunc
	Stdout StdoutFunc
}

// StdinFunc is a function that returns a reader for stdin.
type StdinFunc func() io.Reader

// StdoutFunc is a function that returns a writer for stdout.
type StdoutFunc func() io.Writer

// GetDialer returns the dialer from dependencies, or one for cfg.Driver
// set up for cfg's TLS settings.
func GetDialer(deps *Dependencies, cfg *Client) (ws.Dialer, error) {
	if deps != nil && deps.Dialer != nil {
		return deps.Dialer, nil
	}

	tlsCfg, err := crypto.ClientConfig(cfg.TLSKey, cfg.Insecure)
	if err != nil {
		return nil, fmt.Errorf("crypto.ClientConfig(): %w", err)
	}

	if cfg.Driver == DriverGorilla {
		d := ws.NewGorillaDialer(cfg.MaxFrameSize)
		if cfg.DialTimeout > 0 {
			d.HandshakeTimeout = cfg.DialTimeout
		}
		d.TLSConfig = tlsCfg
		return d, nil
	}
	d := ws.NewCoderDialer(cfg.MaxFrameSize)
	d.TLSConfig = tlsCfg
	return d, nil
}

// GetBridge returns the bridge from dependencies, or the platform default:
// the host WebSocket object under js/wasm and a native bridge on top of
// GetDialer everywhere else.
func GetBridge(deps *Dependencies, cfg *Client) (bridge.Bridge, error) {
	if deps != nil && deps.Bridge != nil {
		return deps.Bridge, nil
	}
	return defaultBridge(deps, cfg)
}

// GetStdinFunc returns the stdin function from dependencies, or a default implementation.
// If deps is nil or deps.Stdin is nil, returns a function that uses os.Stdin.
func GetStdinFunc(deps *Dependencies) StdinFunc {
	if deps != nil && deps.Stdin != nil {
		return deps.Stdin
	}
	return func() io.Reader {
		return os.Stdin
	}
}

// GetStdoutFunc returns the stdout function from dependencies, or a default implementation.
// If deps is nil or deps.Stdout is nil, returns a function that uses os.Stdout.
func GetStdoutFunc(deps *Dependencies) StdoutFunc {
	if deps != nil && deps.Stdout != nil {
		return deps.Stdout
	}
	return func() io.Writer {
		return os.Stdout
	}
}
