package memval

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func captureWarnings(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { SetLogger(nil) })
	return &buf
}

func TestWarningsPrefixed(t *testing.T) {
	buf := captureWarnings(t)

	v := New(WithInitial(0))
	v.Subscribe(func(Snapshot[int]) error { panic("boom") })
	v.Emit(Literal(1))

	out := buf.String()
	if !strings.Contains(out, "[memval] listener failed") {
		t.Errorf("expected prefixed warning, got %q", out)
	}
	if !strings.Contains(out, "boom") {
		t.Errorf("expected panic value in warning, got %q", out)
	}
}

func TestDisableWarnings(t *testing.T) {
	buf := captureWarnings(t)

	DisableWarnings()
	if WarningsEnabled() {
		t.Error("expected warnings disabled")
	}
	warn("silenced")
	EnableWarnings()
	warn("audible")

	out := buf.String()
	if strings.Contains(out, "silenced") {
		t.Errorf("disabled warning was emitted: %q", out)
	}
	if !strings.Contains(out, "audible") {
		t.Errorf("enabled warning was not emitted: %q", out)
	}
}

func TestEnableMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	globalMetricsMu.Lock()
	saved := globalMetrics
	globalMetrics = nil
	globalMetricsMu.Unlock()
	t.Cleanup(func() {
		globalMetricsMu.Lock()
		globalMetrics = saved
		globalMetricsMu.Unlock()
	})

	EnableMetrics(WithRegistry(registry), WithNamespace("test"))
	EnableMetrics(WithRegistry(registry)) // no-op

	v := New(WithInitial(0))
	v.Emit(Literal(1))
	v.Emit(Literal(1))

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	got := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				got[mf.GetName()] += c.GetValue()
			}
		}
	}

	if got["test_emissions_total"] != 1 {
		t.Errorf("expected 1 emission, got %v", got["test_emissions_total"])
	}
	if got["test_emissions_deduplicated_total"] != 1 {
		t.Errorf("expected 1 deduplicated emission, got %v", got["test_emissions_deduplicated_total"])
	}
}
