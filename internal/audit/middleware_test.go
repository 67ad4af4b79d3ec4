package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/maziggy/bambusy/internal/auth"
)

type recordingLogger struct {
	entries []Entry
}

func (r *recordingLogger) Log(_ context.Context, entry Entry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func TestMiddlewareRecordsMutations(t *testing.T) {
	recorder := &recordingLogger{}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware(next, recorder, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/printers/p1/print", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.RoleOperator, "alice"))
	req.Header.Set("X-Forwarded-For", "10.1.2.3, 10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if len(recorder.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(recorder.entries))
	}
	entry := recorder.entries[0]
	if entry.Actor != "alice" {
		t.Fatalf("expected actor alice, got %s", entry.Actor)
	}
	if entry.Role != "operator" {
		t.Fatalf("expected role operator, got %s", entry.Role)
	}
	if entry.Action != "POST /api/v1/printers/p1/print" {
		t.Fatalf("unexpected action %s", entry.Action)
	}
	if entry.ResourceType != "printer" || entry.ResourceID != "p1" {
		t.Fatalf("unexpected resource %s/%s", entry.ResourceType, entry.ResourceID)
	}
	if entry.DeviceID != "p1" {
		t.Fatalf("expected device id p1, got %s", entry.DeviceID)
	}
	if entry.IP != "10.1.2.3" {
		t.Fatalf("expected forwarded ip, got %s", entry.IP)
	}
}

func TestMiddlewareIgnoresReads(t *testing.T) {
	recorder := &recordingLogger{}
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), recorder, zerolog.Nop())

	for _, path := range []string{"/api/v1/printers", "/healthz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	if len(recorder.entries) != 0 {
		t.Fatalf("expected no audit entries, got %d", len(recorder.entries))
	}
}

func TestDigestJSON(t *testing.T) {
	if DigestJSON(nil) != "" {
		t.Fatal("expected empty digest for empty payload")
	}
	first := DigestJSON([]byte(`{"a":1}`))
	second := DigestJSON([]byte(`{"a":1}`))
	if first == "" || first != second {
		t.Fatalf("expected stable digest, got %q and %q", first, second)
	}
	if DigestJSON([]byte(`{"a":2}`)) == first {
		t.Fatal("expected different digest for different payload")
	}
}
