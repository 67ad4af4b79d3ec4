package tasmota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client reads energy counters from a Tasmota smart plug.
type Client struct {
	client *http.Client
}

// NewClient constructs a Tasmota client.
func NewClient() *Client {
	return &Client{client: &http.Client{Timeout: 10 * time.Second}}
}

type statusResponse struct {
	StatusSNS struct {
		Energy struct {
			Total   float64 `json:"Total"`
			Power   float64 `json:"Power"`
			Voltage float64 `json:"Voltage"`
		} `json:"ENERGY"`
	} `json:"StatusSNS"`
}

// Reading is one snapshot of the plug's energy sensor.
type Reading struct {
	TotalKWh float64 `json:"total_kwh"`
	PowerW   float64 `json:"power_w"`
	VoltageV float64 `json:"voltage_v"`
}

// ReadEnergy queries the plug's sensor status.
func (c *Client) ReadEnergy(ctx context.Context, host string) (Reading, error) {
	if host == "" {
		return Reading{}, errors.New("tasmota: empty host")
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}

	endpoint := fmt.Sprintf("%s/cm?cmnd=%s", strings.TrimRight(host, "/"), url.QueryEscape("Status 8"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Reading{}, fmt.Errorf("tasmota: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("tasmota: query %s: %w", host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Reading{}, fmt.Errorf("tasmota: query %s: status %d: %s", host, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return Reading{}, fmt.Errorf("tasmota: decode response: %w", err)
	}
	return Reading{
		TotalKWh: status.StatusSNS.Energy.Total,
		PowerW:   status.StatusSNS.Energy.Power,
		VoltageV: status.StatusSNS.Energy.Voltage,
	}, nil
}
