package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "netpump.yaml")
	yaml := `
url: ws://example.com/ws
backend: polling
driver: gorilla
subprotocols: [netpump.v1, json]
session_id: 7
max_events_per_tick: 64
dial_timeout: 3s
verbose: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path, Default())
	require.NoError(t, err)

	require.Equal(t, "ws://example.com/ws", cfg.URL)
	require.Equal(t, BackendPolling, cfg.Backend)
	require.Equal(t, DriverGorilla, cfg.Driver)
	require.Equal(t, []string{"netpump.v1", "json"}, cfg.Subprotocols)
	require.Equal(t, 7, cfg.SessionID)
	require.Equal(t, 64, cfg.MaxEventsPerTick)
	require.Equal(t, 3*time.Second, cfg.DialTimeout)
	require.True(t, cfg.Verbose)
	require.Empty(t, cfg.Validate())
}

func TestLoadKeepsBase(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "netpump.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url: ws://x\n"), 0o600))

	base := Default()
	base.Deps = &Dependencies{}
	cfg, err := Load(path, base)
	require.NoError(t, err)

	require.Equal(t, BackendThreaded, cfg.Backend)
	require.Equal(t, DriverCoder, cfg.Driver)
	require.Same(t, base.Deps, cfg.Deps)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "loading config file")
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("NETPUMP_URL", "wss://env.example/ws")
	t.Setenv("NETPUMP_MAX_FRAME_SIZE", "4096")
	t.Setenv("NETPUMP_SUBPROTOCOLS", "a,b")

	cfg, err := Load("", Default())
	require.NoError(t, err)

	require.Equal(t, "wss://env.example/ws", cfg.URL)
	require.Equal(t, 4096, cfg.MaxFrameSize)
	require.Equal(t, []string{"a", "b"}, cfg.Subprotocols)
}

func TestLoadServer(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "serve.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\nmax_conns: 10\nmetrics: true\n"), 0o600))

	cfg, err := Load(path, Server{Host: "127.0.0.1"})
	require.NoError(t, err)
	require.Equal(t, Server{Host: "127.0.0.1", Port: 9000, MaxConns: 10, Metrics: true}, cfg)
}
