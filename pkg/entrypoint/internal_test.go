package entrypoint

import (
	"context"
	"io"
	"sync"

	"dominicbreuker/netpump/mocks"
	"dominicbreuker/netpump/pkg/config"
	"dominicbreuker/netpump/pkg/session"
)

// testConfig creates a client configuration dialing through d with stdio
// wired to ms.
func testConfig(backend string, d *mocks.MockDialer, ms *mocks.MockStdio) *config.Client {
	cfg := config.Default()
	cfg.URL = "ws://netpump.test/ws"
	cfg.Backend = backend
	cfg.Deps = &config.Dependencies{
		Dialer: d,
		Stdin:  func() io.Reader { return ms.GetStdin() },
		Stdout: func() io.Writer { return ms.GetStdout() },
	}
	return &cfg
}

// fakeClient records what the outbox does with it.
type fakeClient struct {
	mu     sync.Mutex
	state  session.State
	sent   [][]byte
	closed int
}

func (f *fakeClient) Connect(context.Context) error { return nil }

func (f *fakeClient) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

func (f *fakeClient) SendFrame(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), frame...))
	return nil
}

func (f *fakeClient) Tick() {}

func (f *fakeClient) State() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeClient) setState(s session.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}

func (f *fakeClient) SessionID() int { return 0 }

func (f *fakeClient) OnOpen(func()) (*session.Registration, error) { return nil, nil }

func (f *fakeClient) OnClose(func(uint16, string)) (*session.Registration, error) { return nil, nil }

func (f *fakeClient) OnError(func(error)) (*session.Registration, error) { return nil, nil }

func (f *fakeClient) OnStateChanged(func(session.State)) (*session.Registration, error) {
	return nil, nil
}

func (f *fakeClient) Dispose() {}

func (f *fakeClient) snapshot() ([][]byte, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent, f.closed
}
