package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/maziggy/bambusy/internal/config"
	"github.com/maziggy/bambusy/internal/ftpadapter"
	printer "github.com/maziggy/bambusy/internal/printer/domain"
	"github.com/maziggy/bambusy/internal/printer/mqtt"
)

// SessionManager drives printer telemetry sessions.
type SessionManager interface {
	Connect(ctx context.Context, cfg mqtt.Config) error
	Disconnect(deviceID string)
	Connected(deviceID string) bool
	Status(deviceID string) (printer.State, bool)
	SendCommand(deviceID string, command map[string]any) bool
	StartPrint(deviceID, filename string, plate int) bool
	EnableCapture(deviceID string, enabled bool) bool
	CaptureEnabled(deviceID string) bool
	Logs(deviceID string) ([]mqtt.LogEntry, bool)
	ClearLogs(deviceID string) bool
}

// printerStorage is the part of the FTP client the handler uses.
type printerStorage interface {
	ListFiles(ctx context.Context, dir string) ([]ftpadapter.Entry, error)
	DownloadFile(ctx context.Context, path string) ([]byte, error)
	DeleteFile(ctx context.Context, path string) error
	Storage(ctx context.Context) (ftpadapter.StorageInfo, error)
	Close() error
}

// Handler provides printer HTTP endpoints.
type Handler struct {
	manager SessionManager
	fleet   *config.Fleet
	logger  zerolog.Logger

	dialStorage func(ctx context.Context, host, accessCode string) (printerStorage, error)
}

// NewHandler constructs a handler.
func NewHandler(manager SessionManager, fleet *config.Fleet, logger zerolog.Logger) (*Handler, error) {
	if manager == nil {
		return nil, errors.New("printers handler: nil manager")
	}
	if fleet == nil {
		return nil, errors.New("printers handler: nil fleet")
	}
	return &Handler{
		manager: manager,
		fleet:   fleet,
		logger:  logger,
		dialStorage: func(ctx context.Context, host, accessCode string) (printerStorage, error) {
			return ftpadapter.Dial(ctx, host, accessCode)
		},
	}, nil
}

// ServeHTTP handles /api/v1/printers and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/printers":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/printers/"):
		h.handleDevice(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type printerSummary struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Host         string  `json:"host"`
	Serial       string  `json:"serial"`
	Connected    bool    `json:"connected"`
	State        string  `json:"state"`
	Progress     float64 `json:"progress"`
	CurrentPrint string  `json:"current_print,omitempty"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	summaries := make([]printerSummary, 0, len(h.fleet.Printers))
	for _, entry := range h.fleet.Printers {
		summary := printerSummary{
			ID:     entry.ID,
			Name:   entry.Name,
			Host:   entry.Host,
			Serial: entry.Serial,
			State:  printer.StateUnknown,
		}
		if state, ok := h.manager.Status(entry.ID); ok {
			summary.Connected = h.manager.Connected(entry.ID)
			summary.State = state.JobState
			summary.Progress = state.Progress
			summary.CurrentPrint = state.CurrentPrint
		}
		summaries = append(summaries, summary)
	}
	respondJSON(w, summaries)
}

func (h *Handler) handleDevice(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/printers/")
	parts := strings.Split(path, "/")
	deviceID := parts[0]
	if deviceID == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	entry, ok := h.fleet.Printer(deviceID)
	if !ok {
		http.Error(w, "unknown printer", http.StatusNotFound)
		return
	}

	action := ""
	if len(parts) > 1 {
		action = strings.Join(parts[1:], "/")
	}

	switch action {
	case "status":
		h.handleStatus(w, r, entry)
	case "connect":
		h.handleConnect(w, r, entry)
	case "disconnect":
		h.handleDisconnect(w, r, entry)
	case "command":
		h.handleCommand(w, r, entry)
	case "print":
		h.handlePrint(w, r, entry)
	case "logging":
		h.handleLogging(w, r, entry)
	case "logging/enable":
		h.handleLoggingToggle(w, r, entry, true)
	case "logging/disable":
		h.handleLoggingToggle(w, r, entry, false)
	case "files":
		h.handleFiles(w, r, entry)
	case "files/download":
		h.handleFileDownload(w, r, entry)
	case "storage":
		h.handleStorage(w, r, entry)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request, entry config.Printer) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	state, ok := h.manager.Status(entry.ID)
	if !ok {
		state = printer.NewState()
	}
	respondJSON(w, map[string]any{
		"id":    entry.ID,
		"name":  entry.Name,
		"state": state,
	})
}

func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request, entry config.Printer) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	err := h.manager.Connect(r.Context(), mqtt.Config{
		DeviceID:   entry.ID,
		Host:       entry.Host,
		Serial:     entry.Serial,
		AccessCode: entry.AccessCode,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("device_id", entry.ID).Msg("connect failed")
		http.Error(w, "connect failed", http.StatusBadGateway)
		return
	}
	respondJSON(w, map[string]any{"connected": true})
}

func (h *Handler) handleDisconnect(w http.ResponseWriter, r *http.Request, entry config.Printer) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.manager.Disconnect(entry.ID)
	respondJSON(w, map[string]any{"connected": false})
}

func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request, entry config.Printer) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var command map[string]any
	if err := json.NewDecoder(r.Body).Decode(&command); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if len(command) == 0 {
		http.Error(w, "empty command", http.StatusBadRequest)
		return
	}
	if !h.manager.SendCommand(entry.ID, command) {
		http.Error(w, "printer not connected", http.StatusConflict)
		return
	}
	respondJSON(w, map[string]any{"sent": true})
}

type printRequest struct {
	Filename string `json:"filename"`
	Plate    int    `json:"plate"`
}

func (h *Handler) handlePrint(w http.ResponseWriter, r *http.Request, entry config.Printer) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req printRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Filename == "" {
		http.Error(w, "filename is required", http.StatusBadRequest)
		return
	}
	if req.Plate <= 0 {
		req.Plate = 1
	}
	if !h.manager.StartPrint(entry.ID, req.Filename, req.Plate) {
		http.Error(w, "printer not connected", http.StatusConflict)
		return
	}
	respondJSON(w, map[string]any{"started": true})
}

func (h *Handler) handleLogging(w http.ResponseWriter, r *http.Request, entry config.Printer) {
	switch r.Method {
	case http.MethodGet:
		entries, ok := h.manager.Logs(entry.ID)
		if !ok {
			http.Error(w, "no session for printer", http.StatusConflict)
			return
		}
		respondJSON(w, map[string]any{
			"enabled": h.manager.CaptureEnabled(entry.ID),
			"entries": entries,
		})
	case http.MethodDelete:
		if !h.manager.ClearLogs(entry.ID) {
			http.Error(w, "no session for printer", http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleLoggingToggle(w http.ResponseWriter, r *http.Request, entry config.Printer, enabled bool) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.manager.EnableCapture(entry.ID, enabled) {
		http.Error(w, "no session for printer", http.StatusConflict)
		return
	}
	respondJSON(w, map[string]any{"enabled": enabled})
}

func (h *Handler) handleFiles(w http.ResponseWriter, r *http.Request, entry config.Printer) {
	switch r.Method {
	case http.MethodGet:
		dir := r.URL.Query().Get("dir")
		if dir == "" {
			dir = "/"
		}
		storage, err := h.dialStorage(r.Context(), entry.Host, entry.AccessCode)
		if err != nil {
			h.logger.Error().Err(err).Str("device_id", entry.ID).Msg("storage dial failed")
			http.Error(w, "printer storage unreachable", http.StatusBadGateway)
			return
		}
		defer storage.Close()

		entries, err := storage.ListFiles(r.Context(), dir)
		if err != nil {
			http.Error(w, "listing failed", http.StatusBadGateway)
			return
		}
		respondJSON(w, entries)
	case http.MethodDelete:
		path := r.URL.Query().Get("path")
		if path == "" {
			http.Error(w, "path is required", http.StatusBadRequest)
			return
		}
		storage, err := h.dialStorage(r.Context(), entry.Host, entry.AccessCode)
		if err != nil {
			http.Error(w, "printer storage unreachable", http.StatusBadGateway)
			return
		}
		defer storage.Close()

		if err := storage.DeleteFile(r.Context(), path); err != nil {
			http.Error(w, "delete failed", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleFileDownload(w http.ResponseWriter, r *http.Request, entry config.Printer) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}
	storage, err := h.dialStorage(r.Context(), entry.Host, entry.AccessCode)
	if err != nil {
		h.logger.Error().Err(err).Str("device_id", entry.ID).Msg("storage dial failed")
		http.Error(w, "printer storage unreachable", http.StatusBadGateway)
		return
	}
	defer storage.Close()

	data, err := storage.DownloadFile(r.Context(), path)
	if err != nil {
		http.Error(w, "download failed", http.StatusBadGateway)
		return
	}
	if data == nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	filename := path
	if idx := strings.LastIndex(filename, "/"); idx >= 0 {
		filename = filename[idx+1:]
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(data)
}

func (h *Handler) handleStorage(w http.ResponseWriter, r *http.Request, entry config.Printer) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	storage, err := h.dialStorage(r.Context(), entry.Host, entry.AccessCode)
	if err != nil {
		http.Error(w, "printer storage unreachable", http.StatusBadGateway)
		return
	}
	defer storage.Close()

	info, err := storage.Storage(r.Context())
	if err != nil {
		http.Error(w, "storage query failed", http.StatusBadGateway)
		return
	}
	respondJSON(w, info)
}

func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
