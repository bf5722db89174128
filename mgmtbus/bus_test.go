package mgmtbus

import (
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGetSetCallRoundTrip(t *testing.T) {
	b := New()
	size := "SMALL"
	b.RegisterReadOnly("HwAddress", func() (any, error) { return "00:11:22:33:44:55:66:77", nil })
	b.RegisterReadWrite("WisunSize", func() (any, error) { return size, nil }, func(raw json.RawMessage) error {
		return json.Unmarshal(raw, &size)
	})
	called := false
	b.RegisterMethod("startFan10", func(args json.RawMessage) (any, error) {
		called = true
		return nil, nil
	})

	resp := b.Dispatch(Request{Kind: "get", Name: "HwAddress"})
	if resp.Error != "" || resp.Result == nil {
		t.Fatalf("unexpected response: %+v", resp)
	}

	resp = b.Dispatch(Request{Kind: "set", Name: "WisunSize", Value: json.RawMessage(`"LARGE"`)})
	if resp.Error != "" {
		t.Fatalf("unexpected set error: %s", resp.Error)
	}
	if size != "LARGE" {
		t.Fatalf("expected size updated, got %s", size)
	}

	resp = b.Dispatch(Request{Kind: "call", Name: "startFan10"})
	if resp.Error != "" || !called {
		t.Fatalf("expected startFan10 invoked, resp=%+v called=%v", resp, called)
	}
}

func TestSetReadOnlyPropertyRejected(t *testing.T) {
	b := New()
	b.RegisterReadOnly("HwAddress", func() (any, error) { return "x", nil })
	resp := b.Dispatch(Request{Kind: "set", Name: "HwAddress", Value: json.RawMessage(`"y"`)})
	if resp.Error == "" {
		t.Fatal("expected error setting a read-only property")
	}
}

func TestSignalSubscription(t *testing.T) {
	b := New()
	var got any
	b.OnSignal("PropertyChanged", func(v any) { got = v })
	b.Emit("PropertyChanged", "Nodes")
	if got != "Nodes" {
		t.Fatalf("expected signal payload delivered, got %v", got)
	}
}

func TestMetricsRegisterWithoutPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.QueueDepth.Set(3)
	m.CCAFail.Inc()
	if v := testutil.ToFloat64(m.QueueDepth); v != 3 {
		t.Fatalf("expected gauge value 3, got %v", v)
	}
}
