package entrypoint

import (
	"context"

	"dominicbreuker/netpump/pkg/client"
	"dominicbreuker/netpump/pkg/config"
	"dominicbreuker/netpump/pkg/session"
	"dominicbreuker/netpump/pkg/transport/ws"
)

// clientInterface is the part of *client.Client the connect command drives.
type clientInterface interface {
	Connect(ctx context.Context) error
	Close()
	SendFrame(frame []byte) error
	Tick()
	State() session.State
	SessionID() int
	OnOpen(fn func()) (*session.Registration, error)
	OnClose(fn func(code uint16, reason string)) (*session.Registration, error)
	OnError(fn func(err error)) (*session.Registration, error)
	OnStateChanged(fn func(session.State)) (*session.Registration, error)
	Dispose()
}

// clientFactory is a function type for creating clients.
type clientFactory func(cfg *config.Client, handler client.FrameHandler, opts ...client.Option) (clientInterface, error)

// realClientFactory returns the actual client factory used in production.
func realClientFactory() clientFactory {
	return func(cfg *config.Client, handler client.FrameHandler, opts ...client.Option) (clientInterface, error) {
		c, err := client.New(cfg, handler, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// echoServer is a function type for running the echo server until ctx is done.
type echoServer func(ctx context.Context, addr string, opts ws.EchoOptions) error
