// Package mgmtbus models the border router's properties and methods as a
// JSON-RPC-style request/response surface (Bus.Dispatch) plus a Prometheus
// /metrics endpoint (§6 "Management bus"). The daemon serves /metrics over
// HTTP; no listener in this module carries requests from another process
// to Bus.Dispatch.
package mgmtbus

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownProperty = errors.New("mgmtbus: unknown property")
	ErrUnknownMethod   = errors.New("mgmtbus: unknown method")
	ErrReadOnly        = errors.New("mgmtbus: property is read-only")
)

// PropertyGetter returns the current value of a property, JSON-encodable.
type PropertyGetter func() (any, error)

// PropertySetter applies a new value (decoded from JSON) to a read-write
// property (§6 "Properties (read-write via config)").
type PropertySetter func(raw json.RawMessage) error

// MethodHandler invokes a bus method with JSON-encoded arguments,
// returning a JSON-encodable result (§6 "Methods").
type MethodHandler func(args json.RawMessage) (any, error)

type property struct {
	get PropertyGetter
	set PropertySetter // nil for read-only properties.
}

// Bus is the process-wide property/method registry. It is not itself a
// transport: a JSON-RPC-over-Unix-socket (or any other) listener calls
// into Bus.Get/Set/Call and marshals the result.
type Bus struct {
	properties map[string]property
	methods    map[string]MethodHandler
	signals    map[string][]func(any)
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		properties: make(map[string]property),
		methods:    make(map[string]MethodHandler),
		signals:    make(map[string][]func(any)),
	}
}

// RegisterReadOnly installs a read-only property (most of §6's
// "Properties (read-only)" list: HwAddress, WisunPanId, NetworkState,
// Nodes, Gtks/Lgtks/Gaks/Lgaks, GetTimingParam, and friends).
func (b *Bus) RegisterReadOnly(name string, get PropertyGetter) {
	b.properties[name] = property{get: get}
}

// RegisterReadWrite installs a config-backed read-write property (§6
// "Properties (read-write via config)": WisunNetworkName, WisunSize, …).
func (b *Bus) RegisterReadWrite(name string, get PropertyGetter, set PropertySetter) {
	b.properties[name] = property{get: get, set: set}
}

// RegisterMethod installs a callable method (§6 "Methods":
// JoinMulticastGroup, SetModeSwitch, RevokePairwiseKeys, …).
func (b *Bus) RegisterMethod(name string, h MethodHandler) {
	b.methods[name] = h
}

// Get evaluates a registered property.
func (b *Bus) Get(name string) (any, error) {
	p, ok := b.properties[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	return p.get()
}

// Set applies a new value to a read-write property.
func (b *Bus) Set(name string, raw json.RawMessage) error {
	p, ok := b.properties[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	if p.set == nil {
		return fmt.Errorf("%w: %s", ErrReadOnly, name)
	}
	return p.set(raw)
}

// Call invokes a registered method.
func (b *Bus) Call(name string, args json.RawMessage) (any, error) {
	m, ok := b.methods[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	return m(args)
}

// OnSignal subscribes fn to a named signal (§6 "Signals": PropertyChanged
// on Gtks/Lgtks/Gaks/Lgaks and Nodes).
func (b *Bus) OnSignal(name string, fn func(any)) {
	b.signals[name] = append(b.signals[name], fn)
}

// Emit fires a named signal to all subscribers with payload.
func (b *Bus) Emit(name string, payload any) {
	for _, fn := range b.signals[name] {
		fn(payload)
	}
}

// Request is one JSON-RPC-style call over the bus transport.
type Request struct {
	Kind  string          `json:"kind"` // "get", "set", "call"
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Response carries either a result or an error string, matching the
// plainest JSON-RPC response shape — no batching, no notifications,
// since the bus is a local single-client surface (§6).
type Response struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Dispatch decodes and executes one Request against the bus, returning a
// Response ready to marshal back to the caller.
func (b *Bus) Dispatch(req Request) Response {
	var (
		result any
		err    error
	)
	switch req.Kind {
	case "get":
		result, err = b.Get(req.Name)
	case "set":
		err = b.Set(req.Name, req.Value)
	case "call":
		result, err = b.Call(req.Name, req.Value)
	default:
		err = fmt.Errorf("mgmtbus: unknown request kind %q", req.Kind)
	}
	if err != nil {
		return Response{Error: err.Error()}
	}
	return Response{Result: result}
}
