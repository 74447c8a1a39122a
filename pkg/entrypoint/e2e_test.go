package entrypoint

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"dominicbreuker/netpump/mocks"
	"dominicbreuker/netpump/pkg/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func startServer(t *testing.T, ctx context.Context, cfg config.Server) {
	t.Helper()

	go func() {
		_ = Serve(ctx, &cfg)
	}()

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("echo server on %s did not come up", addr)
}

// it should round trip lines through a real echo server on every backend and driver
func TestEndToEnd(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	port := freePort(t)
	startServer(t, ctx, config.Server{Host: "127.0.0.1", Port: port})

	for _, backend := range []string{config.BackendThreaded, config.BackendPolling} {
		for _, driver := range []string{config.DriverCoder, config.DriverGorilla} {
			backend, driver := backend, driver
			t.Run(backend+"/"+driver, func(t *testing.T) {
				t.Parallel()

				ms := mocks.NewMockStdio()
				defer ms.Close()

				cfg := config.Default()
				cfg.URL = fmt.Sprintf("ws://127.0.0.1:%d/ws", port)
				cfg.Backend = backend
				cfg.Driver = driver
				cfg.Deps = &config.Dependencies{
					Stdin:  ms.GetStdin,
					Stdout: ms.GetStdout,
				}

				errCh := runConnect(ctx, &cfg, ConnectOptions{Envelope: true, Opcode: 3})

				if _, err := ms.WriteToStdin([]byte("one\ntwo\n")); err != nil {
					t.Fatalf("WriteToStdin() error = %v", err)
				}
				if err := ms.WaitForOutput("[3] one\n[3] two\n", 5*time.Second); err != nil {
					t.Fatalf("WaitForOutput() error = %v", err)
				}

				ms.CloseStdin()
				if err := waitResult(t, errCh); err != nil {
					t.Fatalf("connect() error = %v, want nil", err)
				}
			})
		}
	}
}

// it should only accept wss clients that share the key
func TestEndToEnd_TLS(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	port := freePort(t)
	startServer(t, ctx, config.Server{Host: "127.0.0.1", Port: port, TLS: true, TLSKey: "secret"})

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"same key", "secret", false},
		{"wrong key", "guess", true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ms := mocks.NewMockStdio()
			defer ms.Close()

			cfg := config.Default()
			cfg.URL = fmt.Sprintf("wss://127.0.0.1:%d/ws", port)
			cfg.TLSKey = tc.key
			cfg.Deps = &config.Dependencies{
				Stdin:  ms.GetStdin,
				Stdout: ms.GetStdout,
			}

			errCh := runConnect(ctx, &cfg, ConnectOptions{})
			if !tc.wantErr {
				if _, err := ms.WriteToStdin([]byte("secure\n")); err != nil {
					t.Fatalf("WriteToStdin() error = %v", err)
				}
				ms.CloseStdin()
			}
			err := waitResult(t, errCh)

			if (err != nil) != tc.wantErr {
				t.Fatalf("connect() error = %v, wantErr %t", err, tc.wantErr)
			}
			if !tc.wantErr && ms.ReadFromStdout() != "secure\n" {
				t.Errorf("stdout = %q, want \"secure\\n\"", ms.ReadFromStdout())
			}
		})
	}
}
