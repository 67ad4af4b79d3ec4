package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	archive "github.com/maziggy/bambusy/internal/archive/domain"
	"github.com/maziggy/bambusy/internal/archive/interfaces"
)

// ArchiveStore is the repository surface the handler reads from.
type ArchiveStore interface {
	Get(ctx context.Context, id string) (*archive.PrintArchive, error)
	GetSource(ctx context.Context, id string) ([]byte, error)
	ListByDevice(ctx context.Context, deviceID string) ([]archive.PrintArchive, error)
	ListAll(ctx context.Context, limit int) ([]archive.PrintArchive, error)
	Delete(ctx context.Context, id string) error
}

// Handler provides archive HTTP endpoints.
type Handler struct {
	store  ArchiveStore
	logger zerolog.Logger
}

// NewHandler constructs a handler.
func NewHandler(store ArchiveStore, logger zerolog.Logger) (*Handler, error) {
	if store == nil {
		return nil, errors.New("archives handler: nil store")
	}
	return &Handler{store: store, logger: logger}, nil
}

// ServeHTTP handles /api/v1/archives and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/archives":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
	case r.URL.Path == "/api/v1/archives/export.pdf":
		h.handleExport(w, r, "pdf")
	case r.URL.Path == "/api/v1/archives/export.xlsx":
		h.handleExport(w, r, "xlsx")
	case strings.HasPrefix(r.URL.Path, "/api/v1/archives/"):
		h.handleRecord(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := h.listRecords(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []archive.PrintArchive{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(records)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, format string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	records, err := h.listRecords(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case "pdf":
		data, err = interfaces.BuildHistoryPDF(records)
		contentType = "application/pdf"
	case "xlsx":
		data, err = interfaces.BuildHistoryXLSX(records)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		h.logger.Error().Err(err).Str("format", format).Msg("history export failed")
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=print-history.%s", format))
	_, _ = w.Write(data)
}

func (h *Handler) listRecords(r *http.Request) ([]archive.PrintArchive, error) {
	if deviceID := r.URL.Query().Get("device_id"); deviceID != "" {
		return h.store.ListByDevice(r.Context(), deviceID)
	}
	limit := 0
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			return nil, errors.New("limit must be a positive integer")
		}
		limit = parsed
	}
	return h.store.ListAll(r.Context(), limit)
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/archives/")
	parts := strings.Split(path, "/")
	id := parts[0]
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if len(parts) == 2 && parts[1] == "source" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleSource(w, r, id)
		return
	}
	if len(parts) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		record, err := h.store.Get(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if record == nil {
			http.Error(w, "archive not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(record)
	case http.MethodDelete:
		if err := h.store.Delete(r.Context(), id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleSource(w http.ResponseWriter, r *http.Request, id string) {
	record, err := h.store.Get(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "archive not found", http.StatusNotFound)
		return
	}
	source, err := h.store.GetSource(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if source == nil {
		http.Error(w, "archive source not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.Filename))
	_, _ = w.Write(source)
}
