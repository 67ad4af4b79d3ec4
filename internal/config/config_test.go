package config

import "testing"

const sampleFleet = `
printers:
  - id: p1
    name: X1 Carbon
    host: 10.0.0.5
    serial: 01S00C123
    access_code: secret
    auto_archive: true
    plug_host: 10.0.0.15
  - id: p2
    name: A1 Mini
    host: 10.0.0.6
    serial: 03W00A456
    access_code: other
`

func TestParseFleet(t *testing.T) {
	fleet, err := ParseFleet([]byte(sampleFleet))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fleet.Printers) != 2 {
		t.Fatalf("expected 2 printers, got %d", len(fleet.Printers))
	}

	printer, ok := fleet.Printer("p1")
	if !ok {
		t.Fatal("expected p1 to exist")
	}
	if printer.Serial != "01S00C123" || !printer.AutoArchive {
		t.Fatalf("unexpected printer: %+v", printer)
	}

	if _, ok := fleet.Printer("missing"); ok {
		t.Fatal("expected missing printer lookup to fail")
	}
}

func TestParseFleetValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing id", "printers:\n  - host: h\n    serial: s\n"},
		{"missing host", "printers:\n  - id: p1\n    serial: s\n"},
		{"missing serial", "printers:\n  - id: p1\n    host: h\n"},
		{"duplicate id", "printers:\n  - id: p1\n    host: h\n    serial: s\n  - id: p1\n    host: h2\n    serial: s2\n"},
		{"malformed", "printers: [\n"},
	}
	for _, tc := range cases {
		if _, err := ParseFleet([]byte(tc.yaml)); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestFleetLookup(t *testing.T) {
	fleet, err := ParseFleet([]byte(sampleFleet))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, ok := fleet.Lookup("p1")
	if !ok || info.Host != "10.0.0.5" || !info.AutoArchive {
		t.Fatalf("unexpected device info: %+v (ok=%v)", info, ok)
	}
	if _, ok := fleet.Lookup("missing"); ok {
		t.Fatal("expected lookup miss")
	}
}

func TestFleetPlugHosts(t *testing.T) {
	fleet, err := ParseFleet([]byte(sampleFleet))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	plugs := fleet.PlugHosts()
	if len(plugs) != 1 || plugs["p1"] != "10.0.0.15" {
		t.Fatalf("unexpected plug hosts: %v", plugs)
	}
}
