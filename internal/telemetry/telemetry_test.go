package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.RecordTurn("query", "generated", 120*time.Millisecond)
	m.RecordTurn("query", "cached", time.Millisecond)
	m.RecordCacheLookup("exact", true)
	m.RecordCacheLookup("similar", false)
	m.RecordFallback("retrieval")
	m.SetActiveSessions(4)
	m.SetComponentUp("store", true)

	if got := testutil.ToFloat64(m.Turns.WithLabelValues("query", "generated")); got != 1 {
		t.Errorf("turns{query,generated} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("exact", "hit")); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ActiveSessions); got != 4 {
		t.Errorf("active sessions = %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.HealthStatus.WithLabelValues("store")); got != 1 {
		t.Errorf("component_up{store} = %v, want 1", got)
	}
	if n, err := testutil.GatherAndCount(m.Registry(), "policychat_fallbacks_total"); err != nil || n != 1 {
		t.Errorf("GatherAndCount = %d, %v", n, err)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.RecordTurn("query", "generated", time.Second)
	m.RecordCacheLookup("exact", false)
	m.RecordFallback("generation")
	m.RecordSessionCreated()
	m.RecordSessionTerminated()
	m.SetActiveSessions(1)
	m.WebSocketOpened()
	m.WebSocketClosed()
	m.SetComponentUp("store", false)
	if m.Registry() != nil {
		t.Error("nil metrics returned a registry")
	}
}

func TestSetupTracing_DisabledWithoutEndpoint(t *testing.T) {
	t.Parallel()

	shutdown, err := SetupTracing(context.Background(), TracingConfig{}, "test")
	if err != nil {
		t.Fatal(err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown = %v", err)
	}
}

func TestTracingConfig_Validate(t *testing.T) {
	t.Parallel()

	if err := (TracingConfig{SampleRatio: 1.5}).Validate(); err == nil {
		t.Error("ratio 1.5 accepted")
	}
	if err := (TracingConfig{SampleRatio: 0.2}).Validate(); err != nil {
		t.Errorf("ratio 0.2 rejected: %v", err)
	}
}
