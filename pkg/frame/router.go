package frame

import (
	"sync"

	"dominicbreuker/netpump/pkg/log"
)

// Handler handles the payload of one opcode. The payload is only valid
// during the call.
type Handler func(sessionID int, payload []byte)

// Router dispatches frames to handlers by opcode. It implements
// client.FrameHandler.
type Router struct {
	// OnUnhandled is called for opcodes without a handler.
	OnUnhandled func(sessionID int, opcode int32, payload []byte)
	// OnParseError is called for frames that cannot be parsed.
	OnParseError func(sessionID int, err error)

	logger *log.Logger

	mu       sync.RWMutex
	handlers map[int32]Handler
}

// NewRouter creates an empty router.
func NewRouter(logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Discard()
	}
	return &Router{logger: logger, handlers: make(map[int32]Handler)}
}

// Handle registers h for opcode, replacing any previous handler.
func (r *Router) Handle(opcode int32, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[opcode] = h
}

// Remove drops the handler for opcode.
func (r *Router) Remove(opcode int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, opcode)
}

// OnFrame parses frame and runs the handler for its opcode. A panicking
// handler counts as handled.
func (r *Router) OnFrame(sessionID int, frame []byte) {
	opcode, payload, err := Parse(frame)
	if err != nil {
		r.logger.VerboseMsg("Session %d: dropping frame: %s", sessionID, err)
		if r.OnParseError != nil {
			r.OnParseError(sessionID, err)
		}
		return
	}

	r.mu.RLock()
	h, ok := r.handlers[opcode]
	r.mu.RUnlock()

	if !ok {
		if r.OnUnhandled != nil {
			r.OnUnhandled(sessionID, opcode, payload)
		}
		return
	}
	r.dispatch(h, sessionID, opcode, payload)
}

func (r *Router) dispatch(h Handler, sessionID int, opcode int32, payload []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorMsg("Session %d: handler for opcode %d panicked: %v\n", sessionID, opcode, rec)
		}
	}()
	h(sessionID, payload)
}
