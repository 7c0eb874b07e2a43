package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// gather returns label value -> sample for one metric family.
func gather(t *testing.T, name, label string) map[string]float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			key := ""
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label {
					key = lp.GetValue()
				}
			}
			switch {
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			}
		}
	}
	return out
}

func TestSetSessionStatusIsExclusive(t *testing.T) {
	InitializeMetrics()
	SetSessionStatus("recording")

	values := gather(t, "screencap_session_status", "status")
	if len(values) != len(Statuses) {
		t.Fatalf("expected %d status series, got %v", len(Statuses), values)
	}
	for _, status := range Statuses {
		want := 0.0
		if status == "recording" {
			want = 1
		}
		if values[status] != want {
			t.Fatalf("status %s: expected %v, got %v", status, want, values[status])
		}
	}
}

func TestInitializeMetricsExportsSeries(t *testing.T) {
	InitializeMetrics()
	if got := gather(t, "screencap_transcode_total", "result"); len(got) != 2 {
		t.Fatalf("expected 2 transcode series, got %v", got)
	}
	if got := gather(t, "screencap_saved_recordings_total", "kind"); len(got) != 2 {
		t.Fatalf("expected 2 library series, got %v", got)
	}
}

func TestCounterOperations(t *testing.T) {
	InitializeMetrics()
	before := gather(t, "screencap_recordings_total", "trigger")["host"]
	RecordingsTotal.WithLabelValues("host").Inc()
	if got := gather(t, "screencap_recordings_total", "trigger")["host"]; got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}
}
