package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/maziggy/bambusy/internal/config"
	"github.com/maziggy/bambusy/internal/ftpadapter"
	printer "github.com/maziggy/bambusy/internal/printer/domain"
	"github.com/maziggy/bambusy/internal/printer/mqtt"
)

type fakeManager struct {
	states      map[string]printer.State
	connected   map[string]bool
	connectErr  error
	connects    []mqtt.Config
	disconnects []string
	commands    []map[string]any
	prints      []string
	sendOK      bool
}

func newFakeManager() *fakeManager {
	return &fakeManager{
		states:    make(map[string]printer.State),
		connected: make(map[string]bool),
		sendOK:    true,
	}
}

func (m *fakeManager) Connect(_ context.Context, cfg mqtt.Config) error {
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connects = append(m.connects, cfg)
	m.connected[cfg.DeviceID] = true
	return nil
}

func (m *fakeManager) Disconnect(deviceID string) {
	m.disconnects = append(m.disconnects, deviceID)
	m.connected[deviceID] = false
}

func (m *fakeManager) Connected(deviceID string) bool {
	return m.connected[deviceID]
}

func (m *fakeManager) Status(deviceID string) (printer.State, bool) {
	state, ok := m.states[deviceID]
	return state, ok
}

func (m *fakeManager) SendCommand(_ string, command map[string]any) bool {
	if !m.sendOK {
		return false
	}
	m.commands = append(m.commands, command)
	return true
}

func (m *fakeManager) StartPrint(_, filename string, _ int) bool {
	if !m.sendOK {
		return false
	}
	m.prints = append(m.prints, filename)
	return true
}

func (m *fakeManager) EnableCapture(deviceID string, _ bool) bool {
	_, ok := m.states[deviceID]
	return ok
}

func (m *fakeManager) CaptureEnabled(string) bool { return false }

func (m *fakeManager) Logs(deviceID string) ([]mqtt.LogEntry, bool) {
	_, ok := m.states[deviceID]
	return nil, ok
}

func (m *fakeManager) ClearLogs(deviceID string) bool {
	_, ok := m.states[deviceID]
	return ok
}

type fakeStorage struct {
	entries []ftpadapter.Entry
	files   map[string][]byte
	deleted []string
	closed  bool
}

func (s *fakeStorage) ListFiles(context.Context, string) ([]ftpadapter.Entry, error) {
	return s.entries, nil
}

func (s *fakeStorage) DownloadFile(_ context.Context, path string) ([]byte, error) {
	return s.files[path], nil
}

func (s *fakeStorage) DeleteFile(_ context.Context, path string) error {
	s.deleted = append(s.deleted, path)
	return nil
}

func (s *fakeStorage) Storage(context.Context) (ftpadapter.StorageInfo, error) {
	var info ftpadapter.StorageInfo
	for _, entry := range s.entries {
		if !entry.IsDir {
			info.UsedBytes += entry.SizeBytes
			info.FileCount++
		}
	}
	return info, nil
}

func (s *fakeStorage) Close() error {
	s.closed = true
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *fakeManager, *fakeStorage) {
	t.Helper()

	fleet, err := config.ParseFleet([]byte(`
printers:
  - id: p1
    name: X1 Carbon
    host: 10.0.0.5
    serial: 01S00C123
    access_code: secret
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	manager := newFakeManager()
	handler, err := NewHandler(manager, fleet, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	storage := &fakeStorage{}
	handler.dialStorage = func(context.Context, string, string) (printerStorage, error) {
		return storage, nil
	}
	return handler, manager, storage
}

func TestHandlerListPrinters(t *testing.T) {
	handler, manager, _ := newTestHandler(t)
	state := printer.NewState()
	state.JobState = printer.StateRunning
	state.Progress = 42
	manager.states["p1"] = state
	manager.connected["p1"] = true

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/printers", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var summaries []printerSummary
	if err := json.Unmarshal(resp.Body.Bytes(), &summaries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 printer, got %d", len(summaries))
	}
	if summaries[0].State != printer.StateRunning || summaries[0].Progress != 42 || !summaries[0].Connected {
		t.Fatalf("unexpected summary: %+v", summaries[0])
	}
}

func TestHandlerStatusIncludesHMS(t *testing.T) {
	handler, manager, _ := newTestHandler(t)
	state := printer.NewState()
	state.HMSErrors = []printer.HMSError{{Code: "0x01020000", Module: 1, Severity: 2}}
	manager.states["p1"] = state

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/printers/p1/status", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "0x01020000") {
		t.Fatalf("expected HMS code in response, got %s", resp.Body.String())
	}
}

func TestHandlerConnectUsesFleetEntry(t *testing.T) {
	handler, manager, _ := newTestHandler(t)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/printers/p1/connect", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if len(manager.connects) != 1 {
		t.Fatalf("expected one connect, got %d", len(manager.connects))
	}
	cfg := manager.connects[0]
	if cfg.Host != "10.0.0.5" || cfg.Serial != "01S00C123" || cfg.AccessCode != "secret" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestHandlerConnectFailure(t *testing.T) {
	handler, manager, _ := newTestHandler(t)
	manager.connectErr = errors.New("unreachable")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/printers/p1/connect", nil))

	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
}

func TestHandlerUnknownPrinter(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/printers/ghost/status", nil))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestHandlerStartPrint(t *testing.T) {
	handler, manager, _ := newTestHandler(t)

	body := strings.NewReader(`{"filename":"part.gcode.3mf"}`)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/printers/p1/print", body))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if len(manager.prints) != 1 || manager.prints[0] != "part.gcode.3mf" {
		t.Fatalf("expected print start, got %v", manager.prints)
	}
}

func TestHandlerStartPrintValidation(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/printers/p1/print", strings.NewReader(`{}`)))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestHandlerCommandWhenDisconnected(t *testing.T) {
	handler, manager, _ := newTestHandler(t)
	manager.sendOK = false

	body := strings.NewReader(`{"pushing":{"command":"pushall"}}`)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/printers/p1/command", body))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
}

func TestHandlerFiles(t *testing.T) {
	handler, _, storage := newTestHandler(t)
	storage.entries = []ftpadapter.Entry{
		{Name: "part.3mf", SizeBytes: 1024},
		{Name: "cache", IsDir: true},
	}

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/printers/p1/files?dir=/cache", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "part.3mf") {
		t.Fatalf("expected listing in response, got %s", resp.Body.String())
	}
	if !storage.closed {
		t.Fatal("expected storage connection to be closed")
	}
}

func TestHandlerDownloadFile(t *testing.T) {
	handler, _, storage := newTestHandler(t)
	storage.files = map[string][]byte{"/cache/part.3mf": []byte("payload")}

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/printers/p1/files/download?path=/cache/part.3mf", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Body.String() != "payload" {
		t.Fatalf("expected file bytes, got %q", resp.Body.String())
	}
	if got := resp.Header().Get("Content-Disposition"); !strings.Contains(got, `filename="part.3mf"`) {
		t.Fatalf("unexpected disposition %q", got)
	}
	if !storage.closed {
		t.Fatal("expected storage connection to be closed")
	}
}

func TestHandlerDownloadFileMissing(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/printers/p1/files/download?path=/cache/ghost.3mf", nil))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestHandlerDeleteFile(t *testing.T) {
	handler, _, storage := newTestHandler(t)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/api/v1/printers/p1/files?path=/cache/old.3mf", nil))

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if len(storage.deleted) != 1 || storage.deleted[0] != "/cache/old.3mf" {
		t.Fatalf("expected delete of /cache/old.3mf, got %v", storage.deleted)
	}
}

func TestHandlerStorageInfo(t *testing.T) {
	handler, _, storage := newTestHandler(t)
	storage.entries = []ftpadapter.Entry{
		{Name: "a.3mf", SizeBytes: 100},
		{Name: "b.3mf", SizeBytes: 200},
	}

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/printers/p1/storage", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var info ftpadapter.StorageInfo
	if err := json.Unmarshal(resp.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if info.UsedBytes != 300 || info.FileCount != 2 {
		t.Fatalf("unexpected storage info: %+v", info)
	}
}
