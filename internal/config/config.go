package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/maziggy/bambusy/internal/archive/application"
)

// Printer is one fleet entry from the printers file.
type Printer struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Host        string `yaml:"host"`
	Serial      string `yaml:"serial"`
	AccessCode  string `yaml:"access_code"`
	AutoArchive bool   `yaml:"auto_archive"`
	PlugHost    string `yaml:"plug_host"`
}

// Fleet is the set of configured printers.
type Fleet struct {
	Printers []Printer `yaml:"printers"`
}

// LoadFleet reads and validates a fleet file.
func LoadFleet(path string) (*Fleet, error) {
	if path == "" {
		return nil, errors.New("config: empty fleet path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return ParseFleet(data)
}

// ParseFleet decodes and validates fleet YAML.
func ParseFleet(data []byte) (*Fleet, error) {
	var fleet Fleet
	if err := yaml.Unmarshal(data, &fleet); err != nil {
		return nil, fmt.Errorf("config: parse fleet: %w", err)
	}
	seen := make(map[string]struct{}, len(fleet.Printers))
	for i, printer := range fleet.Printers {
		if printer.ID == "" {
			return nil, fmt.Errorf("config: printer %d: empty id", i)
		}
		if printer.Host == "" {
			return nil, fmt.Errorf("config: printer %s: empty host", printer.ID)
		}
		if printer.Serial == "" {
			return nil, fmt.Errorf("config: printer %s: empty serial", printer.ID)
		}
		if _, ok := seen[printer.ID]; ok {
			return nil, fmt.Errorf("config: duplicate printer id %s", printer.ID)
		}
		seen[printer.ID] = struct{}{}
	}
	return &fleet, nil
}

// Printer returns the fleet entry for a device id.
func (f *Fleet) Printer(deviceID string) (Printer, bool) {
	for _, printer := range f.Printers {
		if printer.ID == deviceID {
			return printer, true
		}
	}
	return Printer{}, false
}

// Lookup implements the archive pipeline's device directory.
func (f *Fleet) Lookup(deviceID string) (application.DeviceInfo, bool) {
	printer, ok := f.Printer(deviceID)
	if !ok {
		return application.DeviceInfo{}, false
	}
	return application.DeviceInfo{
		Host:        printer.Host,
		AccessCode:  printer.AccessCode,
		AutoArchive: printer.AutoArchive,
	}, true
}

// PlugHosts maps device ids to their smart plug hosts.
func (f *Fleet) PlugHosts() map[string]string {
	plugs := make(map[string]string)
	for _, printer := range f.Printers {
		if printer.PlugHost != "" {
			plugs[printer.ID] = printer.PlugHost
		}
	}
	return plugs
}
