package db

import (
	"testing"
	"time"
)

func TestMonitorInterval(t *testing.T) {
	m := &Monitor{IntervalMs: 5000}
	if got := m.Interval(); got != 5*time.Second {
		t.Errorf("Interval() = %v, want 5s", got)
	}
}

func TestValidMonitorType(t *testing.T) {
	for _, valid := range []MonitorType{MonitorTypeHTTP, MonitorTypePing, MonitorTypePagespeed} {
		if !ValidMonitorType(valid) {
			t.Errorf("ValidMonitorType(%s) = false", valid)
		}
	}
	if ValidMonitorType("gopher") {
		t.Error("ValidMonitorType accepted unknown type")
	}
}

func TestJSONBRoundTrip(t *testing.T) {
	in := JSONB{"performance": float64(95), "seo": float64(88)}

	v, err := in.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var out JSONB
	if err := out.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if out["performance"] != float64(95) {
		t.Errorf("performance = %v, want 95", out["performance"])
	}
}

func TestJSONBScanNil(t *testing.T) {
	var out JSONB
	if err := out.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Errorf("Scan(nil) produced %v, want empty map", out)
	}
}
