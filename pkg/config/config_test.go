package config

import (
	"strings"
	"testing"
	"time"

	"dominicbreuker/netpump/mocks"
	"dominicbreuker/netpump/pkg/arena"
	"dominicbreuker/netpump/pkg/transport/ws"

	"github.com/stretchr/testify/require"
)

func TestClientValidate(t *testing.T) {
	t.Parallel()

	base := func() Client {
		c := Default()
		c.URL = "ws://localhost:8080/ws"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Client)
		wantErr string
	}{
		{name: "default is valid", mutate: func(c *Client) {}},
		{name: "wss is valid", mutate: func(c *Client) { c.URL = "wss://example.com/ws" }},
		{name: "gorilla polling valid", mutate: func(c *Client) { c.Driver = DriverGorilla; c.Backend = BackendPolling }},
		{name: "missing url", mutate: func(c *Client) { c.URL = "" }, wantErr: "a URL is required"},
		{name: "http scheme", mutate: func(c *Client) { c.URL = "http://x" }, wantErr: "scheme must be ws or wss"},
		{name: "bad backend", mutate: func(c *Client) { c.Backend = "fibers" }, wantErr: "'--backend'"},
		{name: "bad driver", mutate: func(c *Client) { c.Driver = "nhooyr" }, wantErr: "'--driver'"},
		{name: "key and insecure", mutate: func(c *Client) { c.TLSKey = "k"; c.Insecure = true }, wantErr: "cannot be combined"},
		{name: "negative events cap", mutate: func(c *Client) { c.MaxEventsPerTick = -1 }, wantErr: "'--max-events-per-tick'"},
		{name: "frame size too large", mutate: func(c *Client) { c.MaxFrameSize = arena.MaxClassSize + 1 }, wantErr: "at most"},
		{name: "frame size leaves no headroom", mutate: func(c *Client) { c.MaxFrameSize = arena.MaxClassSize }, wantErr: "'--max-frame-size' must be at most"},
		{name: "largest frame size", mutate: func(c *Client) { c.MaxFrameSize = arena.MaxMessageSize(c.RecvMinFree) }},
		{name: "recv buffer too large", mutate: func(c *Client) { c.RecvBufferSize = arena.MaxClassSize * 2 }, wantErr: "'--recv-buffer-size' must be at most"},
		{
			name:    "min free not below buffer",
			mutate:  func(c *Client) { c.RecvBufferSize = 4096; c.RecvMinFree = 4096 },
			wantErr: "'--recv-min-free'",
		},
		{name: "negative timeout", mutate: func(c *Client) { c.DialTimeout = -time.Second }, wantErr: "'--dial-timeout'"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := base()
			tc.mutate(&c)
			errs := c.Validate()

			if tc.wantErr == "" {
				if len(errs) != 0 {
					t.Errorf("Validate() = %v, want no errors", errs)
				}
				return
			}
			if len(errs) != 1 {
				t.Fatalf("Validate() = %v, want one error", errs)
			}
			if !strings.Contains(errs[0].Error(), tc.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", errs[0], tc.wantErr)
			}
		})
	}
}

func TestServerValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      Server
		wantErrs int
	}{
		{"valid", Server{Port: 8080}, 0},
		{"bad port", Server{Port: 70000}, 1},
		{"negative limits", Server{Port: 8080, MaxConns: -1, MaxFrameSize: -1}, 2},
		{"key without tls", Server{Port: 8080, TLSKey: "k"}, 1},
		{"tls with key", Server{Port: 8443, TLS: true, TLSKey: "k"}, 0},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if errs := tc.cfg.Validate(); len(errs) != tc.wantErrs {
				t.Errorf("Validate() = %v, want %d errors", errs, tc.wantErrs)
			}
		})
	}
}

func TestGetDialer(t *testing.T) {
	t.Parallel()

	injected := &mocks.MockDialer{}
	got, err := GetDialer(&Dependencies{Dialer: injected}, &Client{})
	require.NoError(t, err)
	require.Same(t, injected, got)

	got, err = GetDialer(nil, &Client{Driver: DriverCoder})
	require.NoError(t, err)
	coder, ok := got.(*ws.CoderDialer)
	require.True(t, ok, "GetDialer(coder) returned %T", got)
	require.Nil(t, coder.TLSConfig)

	got, err = GetDialer(nil, &Client{Driver: DriverGorilla, DialTimeout: 3 * time.Second, TLSKey: "secret"})
	require.NoError(t, err)
	gorilla, ok := got.(*ws.GorillaDialer)
	require.True(t, ok, "GetDialer(gorilla) returned %T", got)
	require.Equal(t, 3*time.Second, gorilla.HandshakeTimeout)
	require.NotNil(t, gorilla.TLSConfig)
	require.Len(t, gorilla.TLSConfig.Certificates, 1)

	got, err = GetDialer(nil, &Client{Insecure: true})
	require.NoError(t, err)
	require.True(t, got.(*ws.CoderDialer).TLSConfig.InsecureSkipVerify)
}

func TestGetBridge(t *testing.T) {
	t.Parallel()

	injected := mocks.NewMockBridge()
	got, err := GetBridge(&Dependencies{Bridge: injected}, &Client{})
	require.NoError(t, err)
	require.Same(t, injected, got)
}

func TestGetStdio(t *testing.T) {
	t.Parallel()

	if GetStdinFunc(nil)() == nil {
		t.Error("default stdin is nil")
	}
	if GetStdoutFunc(nil)() == nil {
		t.Error("default stdout is nil")
	}

	stdio := mocks.NewMockStdio()
	deps := &Dependencies{Stdin: stdio.GetStdin, Stdout: stdio.GetStdout}
	if GetStdinFunc(deps)() != stdio.GetStdin() {
		t.Error("GetStdinFunc() ignored the injected stdin")
	}
}
