package tasmota

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientReadEnergy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cm" || r.URL.Query().Get("cmnd") != "Status 8" {
			t.Fatalf("unexpected request: %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"StatusSNS":{"Time":"2026-01-01T00:00:00","ENERGY":{"Total":12.345,"Power":140,"Voltage":231}}}`))
	}))
	defer server.Close()

	reading, err := NewClient().ReadEnergy(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reading.TotalKWh != 12.345 {
		t.Fatalf("expected total 12.345, got %v", reading.TotalKWh)
	}
	if reading.PowerW != 140 {
		t.Fatalf("expected power 140, got %v", reading.PowerW)
	}
}

func TestClientReadEnergyBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	if _, err := NewClient().ReadEnergy(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestMeterWithoutPlug(t *testing.T) {
	meter := NewMeter(NewClient(), map[string]string{})

	if _, ok, err := meter.TotalKWh(context.Background(), "p1"); ok || err != nil {
		t.Fatalf("expected no reading without a plug, got ok=%v err=%v", ok, err)
	}
}

func TestMeterReadsAssignedPlug(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"StatusSNS":{"ENERGY":{"Total":3.5}}}`))
	}))
	defer server.Close()

	meter := NewMeter(NewClient(), map[string]string{"p1": server.URL})

	total, ok, err := meter.TotalKWh(context.Background(), "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || total != 3.5 {
		t.Fatalf("expected 3.5 kWh, got %v (ok=%v)", total, ok)
	}

	meter.SetPlug("p1", "")
	if _, ok, _ := meter.TotalKWh(context.Background(), "p1"); ok {
		t.Fatal("expected no reading after plug removal")
	}
}
