package entrypoint

import (
	"context"

	"dominicbreuker/netpump/pkg/frame"
	"dominicbreuker/netpump/pkg/log"
	"dominicbreuker/netpump/pkg/session"
)

const (
	outboxSize       = 256
	maxFramesPerTick = 64
)

// outbox hands frames read on the input goroutine to the client on the
// pump goroutine. Frames wait until the session is connected. When input
// ends and the outbox is drained the connection is closed.
type outbox struct {
	c        clientInterface
	frameLog *log.FrameLog
	logger   *log.Logger
	envelope bool
	opcode   int32

	frames  chan []byte
	closing bool
}

func newOutbox(c clientInterface, frameLog *log.FrameLog, opts ConnectOptions, logger *log.Logger) *outbox {
	return &outbox{
		c:        c,
		frameLog: frameLog,
		logger:   logger,
		envelope: opts.Envelope,
		opcode:   opts.Opcode,
		frames:   make(chan []byte, outboxSize),
	}
}

// push queues line as a frame, blocking while the outbox is full.
func (o *outbox) push(ctx context.Context, line []byte) error {
	var f []byte
	if o.envelope {
		f = frame.Append(nil, o.opcode, line)
	} else {
		f = append([]byte(nil), line...)
	}

	select {
	case o.frames <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finish marks the end of input. Only the goroutine calling push may call it.
func (o *outbox) finish() {
	close(o.frames)
}

// Tick implements tickloop.Tickable.
func (o *outbox) Tick() {
	if o.closing || o.c.State() != session.Connected {
		return
	}

	for i := 0; i < maxFramesPerTick; i++ {
		select {
		case f, ok := <-o.frames:
			if !ok {
				o.closing = true
				o.logger.VerboseMsg("Input closed, closing connection")
				o.c.Close()
				return
			}
			if err := o.c.SendFrame(f); err != nil {
				o.logger.ErrorMsg("Sending frame: %s\n", err)
				continue
			}
			if err := o.frameLog.Sent(o.c.SessionID(), f); err != nil {
				o.logger.ErrorMsg("%s\n", err)
			}
		default:
			return
		}
	}
}
