package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	archive "github.com/maziggy/bambusy/internal/archive/domain"
)

type fakeStore struct {
	records map[string]*archive.PrintArchive
	sources map[string][]byte
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string]*archive.PrintArchive),
		sources: make(map[string][]byte),
	}
}

func (s *fakeStore) Get(_ context.Context, id string) (*archive.PrintArchive, error) {
	return s.records[id], nil
}

func (s *fakeStore) GetSource(_ context.Context, id string) ([]byte, error) {
	return s.sources[id], nil
}

func (s *fakeStore) ListByDevice(_ context.Context, deviceID string) ([]archive.PrintArchive, error) {
	var out []archive.PrintArchive
	for _, record := range s.records {
		if record.DeviceID == deviceID {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (s *fakeStore) ListAll(_ context.Context, _ int) ([]archive.PrintArchive, error) {
	var out []archive.PrintArchive
	for _, record := range s.records {
		out = append(out, *record)
	}
	return out, nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	delete(s.records, id)
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	handler, err := NewHandler(store, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return handler, store
}

func sampleRecord(id, deviceID string) *archive.PrintArchive {
	return &archive.PrintArchive{
		ID:        id,
		DeviceID:  deviceID,
		Filename:  "part.gcode.3mf",
		PrintName: "Part",
		Status:    archive.StatusCompleted,
		SizeBytes: 2048,
		CreatedAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func TestHandlerListArchives(t *testing.T) {
	handler, store := newTestHandler(t)
	store.records["a1"] = sampleRecord("a1", "p1")
	store.records["a2"] = sampleRecord("a2", "p2")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/archives?device_id=p1", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var records []archive.PrintArchive
	if err := json.Unmarshal(resp.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(records) != 1 || records[0].ID != "a1" {
		t.Fatalf("unexpected records: %v", records)
	}
}

func TestHandlerListArchivesEmpty(t *testing.T) {
	handler, _ := newTestHandler(t)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/archives", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if body := resp.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty array, got %q", body)
	}
}

func TestHandlerGetArchive(t *testing.T) {
	handler, store := newTestHandler(t)
	store.records["a1"] = sampleRecord("a1", "p1")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/archives/a1", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/archives/ghost", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestHandlerDownloadSource(t *testing.T) {
	handler, store := newTestHandler(t)
	store.records["a1"] = sampleRecord("a1", "p1")
	store.sources["a1"] = []byte("3mf-bytes")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/archives/a1/source", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !bytes.Equal(resp.Body.Bytes(), []byte("3mf-bytes")) {
		t.Fatalf("unexpected body: %q", resp.Body.String())
	}
	if disposition := resp.Header().Get("Content-Disposition"); disposition == "" {
		t.Fatal("expected content disposition header")
	}
}

func TestHandlerDeleteArchive(t *testing.T) {
	handler, store := newTestHandler(t)
	store.records["a1"] = sampleRecord("a1", "p1")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/api/v1/archives/a1", nil))

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "a1" {
		t.Fatalf("unexpected deletes: %v", store.deleted)
	}
}

func TestHandlerExportPDF(t *testing.T) {
	handler, store := newTestHandler(t)
	store.records["a1"] = sampleRecord("a1", "p1")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/archives/export.pdf", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF")) {
		t.Fatal("expected PDF output")
	}
}

func TestHandlerExportXLSX(t *testing.T) {
	handler, store := newTestHandler(t)
	store.records["a1"] = sampleRecord("a1", "p1")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/archives/export.xlsx", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !bytes.HasPrefix(resp.Body.Bytes(), []byte("PK")) {
		t.Fatal("expected XLSX output")
	}
}
