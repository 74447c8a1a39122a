//go:build js && wasm

// Package jsbridge binds bridge.Bridge to a WebSocket host object provided
// by the JavaScript embedder. The host object must expose:
//
//	connect(url, subprotocols) -> id
//	getState(id) -> readyState
//	sendBinary(id, Uint8Array) -> bool
//	close(id, code, reason)
//	pollEvent(id) -> null | {type, code, data: Uint8Array, text, handle}
//	free(handle)
//
// Events are queued by the host from its WebSocket callbacks; the Go side
// only ever calls in, so no callback crosses the boundary.
package jsbridge

import (
	"fmt"
	"syscall/js"

	"dominicbreuker/netpump/pkg/arena"
	"dominicbreuker/netpump/pkg/bridge"
)

// DefaultGlobal is the name of the host object looked up by New.
const DefaultGlobal = "netpumpBridge"

// Bridge calls into the host object. Message payloads are copied out of
// the host into buffers rented from the process arena.
type Bridge struct {
	host  js.Value
	arena *arena.Arena
}

var _ bridge.Bridge = (*Bridge)(nil)

// New binds to the global object called name.
func New(name string) (*Bridge, error) {
	if name == "" {
		name = DefaultGlobal
	}
	host := js.Global().Get(name)
	if host.IsUndefined() || host.IsNull() {
		return nil, fmt.Errorf("jsbridge: global %q not defined", name)
	}
	return &Bridge{host: host, arena: arena.Default()}, nil
}

// Connect implements bridge.Bridge.
func (b *Bridge) Connect(url string, subprotocols []string) (id int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("connect(%s): %v", url, r)
		}
	}()

	protos := make([]interface{}, len(subprotocols))
	for i, p := range subprotocols {
		protos[i] = p
	}
	id = b.host.Call("connect", url, js.ValueOf(protos)).Int()
	if id < 0 {
		return 0, fmt.Errorf("connect(%s): host refused", url)
	}
	return id, nil
}

// State implements bridge.Bridge.
func (b *Bridge) State(id int) bridge.ReadyState {
	return bridge.ReadyState(b.host.Call("getState", id).Int())
}

// SendBinary implements bridge.Bridge.
func (b *Bridge) SendBinary(id int, p []byte) error {
	arr := js.Global().Get("Uint8Array").New(len(p))
	js.CopyBytesToJS(arr, p)
	if !b.host.Call("sendBinary", id, arr).Truthy() {
		return bridge.ErrNotOpen
	}
	return nil
}

// Close implements bridge.Bridge.
func (b *Bridge) Close(id int, code uint16, reason string) {
	b.host.Call("close", id, int(code), reason)
}

// Poll implements bridge.Bridge.
func (b *Bridge) Poll(id int) (bridge.Event, bool) {
	v := b.host.Call("pollEvent", id)
	if v.IsNull() || v.IsUndefined() {
		return bridge.Event{}, false
	}

	ev := bridge.Event{
		Type: bridge.EventType(v.Get("type").Int()),
	}
	if code := v.Get("code"); code.Type() == js.TypeNumber {
		ev.Code = uint16(code.Int())
	}

	// the host allocation is not needed once the payload is copied
	if free := b.freer(v.Get("handle")); free != nil {
		defer free()
	}
	if data := v.Get("data"); data.Truthy() {
		ev.Data = b.copyData(data)
	}
	if text := v.Get("text"); text.Type() == js.TypeString {
		ev.Text = bridge.NewForeign([]byte(text.String()), nil)
	}
	return ev, true
}

// copyData copies a host Uint8Array into a rented buffer that goes back to
// the arena on release.
func (b *Bridge) copyData(data js.Value) *bridge.Foreign {
	n := data.Get("length").Int()
	if n > arena.MaxClassSize {
		buf := make([]byte, n)
		js.CopyBytesToGo(buf, data)
		return bridge.NewForeign(buf, nil)
	}
	buf := b.arena.Rent(n)
	buf.N = js.CopyBytesToGo(buf.B[:n], data)
	return bridge.NewForeign(buf.Bytes(), func() { b.arena.Return(buf) })
}

// freer returns a func handing handle back to the host, or nil if the event
// carries no host allocation.
func (b *Bridge) freer(handle js.Value) func() {
	if handle.IsUndefined() || handle.IsNull() {
		return nil
	}
	return func() { b.host.Call("free", handle) }
}
