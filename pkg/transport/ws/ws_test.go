package ws

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dominicbreuker/netpump/pkg/log"

	"github.com/coder/websocket"
)

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func drivers() []struct {
	name   string
	dialer Dialer
} {
	return []struct {
		name   string
		dialer Dialer
	}{
		{"coder", NewCoderDialer(1 << 20)},
		{"gorilla", NewGorillaDialer(1 << 20)},
	}
}

func TestEchoRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httptest.NewServer(NewEchoRouter(ctx, EchoOptions{Logger: log.Discard()}))
	defer srv.Close()

	for _, d := range drivers() {
		d := d
		t.Run(d.name, func(t *testing.T) {
			sock, err := d.dialer.Dial(ctx, wsURL(srv, "/ws"), nil)
			if err != nil {
				t.Fatalf("Dial() error = %v", err)
			}
			defer sock.CloseNow()

			want := []byte{0x01, 0x02, 0x03}
			if err := sock.WriteMessage(ctx, want); err != nil {
				t.Fatalf("WriteMessage() error = %v", err)
			}

			r, err := sock.NextReader(ctx)
			if err != nil {
				t.Fatalf("NextReader() error = %v", err)
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("echo = %v; want %v", got, want)
			}
		})
	}
}

func TestPeerCloseIsCloseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		_ = c.Close(4001, "bye")
	}))
	defer srv.Close()

	for _, d := range drivers() {
		d := d
		t.Run(d.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			sock, err := d.dialer.Dial(ctx, wsURL(srv, "/"), nil)
			if err != nil {
				t.Fatalf("Dial() error = %v", err)
			}
			defer sock.CloseNow()

			_, err = sock.NextReader(ctx)
			ce, ok := AsCloseError(err)
			if !ok {
				t.Fatalf("NextReader() error = %v; want *CloseError", err)
			}
			if ce.Code != 4001 || ce.Reason != "bye" {
				t.Errorf("CloseError = %d %q; want 4001 %q", ce.Code, ce.Reason, "bye")
			}
		})
	}
}

func TestCancelUnblocksRead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httptest.NewServer(NewEchoRouter(ctx, EchoOptions{Logger: log.Discard()}))
	defer srv.Close()

	for _, d := range drivers() {
		d := d
		t.Run(d.name, func(t *testing.T) {
			sock, err := d.dialer.Dial(ctx, wsURL(srv, "/ws"), nil)
			if err != nil {
				t.Fatalf("Dial() error = %v", err)
			}
			defer sock.CloseNow()

			readCtx, readCancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() {
				_, err := sock.NextReader(readCtx)
				done <- err
			}()

			time.Sleep(50 * time.Millisecond)
			readCancel()

			select {
			case err := <-done:
				if err == nil {
					t.Error("NextReader() returned nil error after cancel")
				}
			case <-time.After(2 * time.Second):
				t.Fatal("NextReader() still blocked 2s after cancel")
			}
		})
	}
}

func TestDialRefused(t *testing.T) {
	t.Parallel()

	for _, d := range drivers() {
		d := d
		t.Run(d.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := d.dialer.Dial(ctx, "ws://127.0.0.1:1", nil); err == nil {
				t.Error("Dial() to a closed port succeeded")
			}
		})
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(NewEchoRouter(context.Background(), EchoOptions{Logger: log.Discard()}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health status = %d; want 200", resp.StatusCode)
	}
}
