package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/maziggy/bambusy/internal/eventing"
	"github.com/maziggy/bambusy/internal/observability/metrics"
	printer "github.com/maziggy/bambusy/internal/printer/domain"
	"github.com/maziggy/bambusy/internal/printer/mqtt"
)

const dispatchBuffer = 256

// session is the part of a telemetry session the manager drives.
type session interface {
	Connect(ctx context.Context) error
	Disconnect()
	Connected() bool
	State() printer.State
	SendCommand(command map[string]any) bool
	EnableCapture(enabled bool)
	CaptureEnabled() bool
	Logs() []mqtt.LogEntry
	ClearLogs()
}

// busEvent carries one session callback to the dispatch goroutine.
type busEvent struct {
	deviceID string
	state    *printer.State
	event    *printer.Event
	at       time.Time
}

// Manager owns one telemetry session per printer and fans their updates
// out onto the event bus from a single dispatch goroutine, keeping the
// MQTT callbacks free of downstream work.
type Manager struct {
	bus    *eventing.Bus
	logger zerolog.Logger

	newSession func(cfg mqtt.Config, handler mqtt.Handler, logger zerolog.Logger) (session, error)

	mu       sync.Mutex
	sessions map[string]session
	closed   bool

	events chan busEvent
	done   chan struct{}
}

// NewManager constructs a manager publishing to the given bus.
func NewManager(bus *eventing.Bus, logger zerolog.Logger) (*Manager, error) {
	if bus == nil {
		return nil, errors.New("application: bus is required")
	}
	m := &Manager{
		bus:    bus,
		logger: logger,
		newSession: func(cfg mqtt.Config, handler mqtt.Handler, logger zerolog.Logger) (session, error) {
			return mqtt.NewSession(cfg, handler, logger)
		},
		sessions: make(map[string]session),
		events:   make(chan busEvent, dispatchBuffer),
		done:     make(chan struct{}),
	}
	go m.dispatch()
	return m, nil
}

// OnStateChanged implements mqtt.Handler.
func (m *Manager) OnStateChanged(deviceID string, state printer.State) {
	m.enqueue(busEvent{deviceID: deviceID, state: &state, at: time.Now().UTC()})
}

// OnLifecycleEvent implements mqtt.Handler.
func (m *Manager) OnLifecycleEvent(deviceID string, event printer.Event) {
	m.enqueue(busEvent{deviceID: deviceID, event: &event, at: time.Now().UTC()})
}

// enqueue never blocks the MQTT callback. A full queue drops the event
// and records the drop.
func (m *Manager) enqueue(event busEvent) {
	select {
	case m.events <- event:
	default:
		metrics.IncDispatchDropped()
		m.logger.Warn().Str("device_id", event.deviceID).Msg("dispatch queue full, dropping event")
	}
}

func (m *Manager) dispatch() {
	ctx := context.Background()
	for {
		select {
		case <-m.done:
			return
		case event := <-m.events:
			m.publish(ctx, event)
		}
	}
}

func (m *Manager) publish(ctx context.Context, event busEvent) {
	switch {
	case event.state != nil:
		err := m.bus.PublishStateChanged(ctx, eventing.StateChanged{
			DeviceID:   event.deviceID,
			State:      *event.state,
			ObservedAt: event.at,
		})
		if err != nil {
			m.logger.Error().Err(err).Str("device_id", event.deviceID).Msg("publish state change failed")
		}
	case event.event != nil && event.event.Kind == printer.EventStart:
		err := m.bus.PublishPrintStarted(ctx, eventing.PrintStarted{
			DeviceID:    event.deviceID,
			Filename:    event.event.Filename,
			SubtaskName: event.event.SubtaskName,
			StartedAt:   event.at,
		})
		if err != nil {
			m.logger.Error().Err(err).Str("device_id", event.deviceID).Msg("publish print start failed")
		}
	case event.event != nil && event.event.Kind == printer.EventComplete:
		err := m.bus.PublishPrintCompleted(ctx, eventing.PrintCompleted{
			DeviceID:    event.deviceID,
			Filename:    event.event.Filename,
			Status:      event.event.Status,
			CompletedAt: event.at,
		})
		if err != nil {
			m.logger.Error().Err(err).Str("device_id", event.deviceID).Msg("publish print completion failed")
		}
	}
}

// Connect creates a session for the printer and establishes its MQTT
// link. Connecting an already managed device reuses the session.
func (m *Manager) Connect(ctx context.Context, cfg mqtt.Config) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("application: manager is closed")
	}
	sess, ok := m.sessions[cfg.DeviceID]
	if !ok {
		created, err := m.newSession(cfg, m, m.logger)
		if err != nil {
			m.mu.Unlock()
			return fmt.Errorf("application: create session: %w", err)
		}
		sess = created
		m.sessions[cfg.DeviceID] = sess
	}
	m.mu.Unlock()

	if err := sess.Connect(ctx); err != nil {
		return err
	}
	m.recordConnected()
	return nil
}

// Disconnect tears down the session for one printer.
func (m *Manager) Disconnect(deviceID string) {
	m.mu.Lock()
	sess, ok := m.sessions[deviceID]
	m.mu.Unlock()
	if !ok {
		return
	}
	sess.Disconnect()
	m.recordConnected()
}

// DisconnectAll tears down every managed session.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	sessions := make([]session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.Disconnect()
	}
	m.recordConnected()
}

// Status returns the current state snapshot for one printer.
func (m *Manager) Status(deviceID string) (printer.State, bool) {
	m.mu.Lock()
	sess, ok := m.sessions[deviceID]
	m.mu.Unlock()
	if !ok {
		return printer.State{}, false
	}
	return sess.State(), true
}

// Connected reports whether the device has a live MQTT link.
func (m *Manager) Connected(deviceID string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[deviceID]
	m.mu.Unlock()
	return ok && sess.Connected()
}

// Devices lists the ids of all managed printers.
func (m *Manager) Devices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// SendCommand publishes a raw command to the printer.
func (m *Manager) SendCommand(deviceID string, command map[string]any) bool {
	m.mu.Lock()
	sess, ok := m.sessions[deviceID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	return sess.SendCommand(command)
}

// StartPrint asks the printer to start printing the named file from its
// local storage.
func (m *Manager) StartPrint(deviceID, filename string, plate int) bool {
	return m.SendCommand(deviceID, mqtt.StartPrintCommand(filename, plate))
}

// EnableCapture toggles MQTT message capture for one printer.
func (m *Manager) EnableCapture(deviceID string, enabled bool) bool {
	m.mu.Lock()
	sess, ok := m.sessions[deviceID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	sess.EnableCapture(enabled)
	return true
}

// CaptureEnabled reports whether capture is active for one printer.
func (m *Manager) CaptureEnabled(deviceID string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[deviceID]
	m.mu.Unlock()
	return ok && sess.CaptureEnabled()
}

// Logs returns the captured MQTT messages for one printer.
func (m *Manager) Logs(deviceID string) ([]mqtt.LogEntry, bool) {
	m.mu.Lock()
	sess, ok := m.sessions[deviceID]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	return sess.Logs(), true
}

// ClearLogs drops the captured messages for one printer.
func (m *Manager) ClearLogs(deviceID string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[deviceID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	sess.ClearLogs()
	return true
}

// TestConnection dials the printer once without registering a session.
func (m *Manager) TestConnection(ctx context.Context, cfg mqtt.Config) error {
	sess, err := m.newSession(cfg, nopHandler{}, m.logger)
	if err != nil {
		return err
	}
	if err := sess.Connect(ctx); err != nil {
		return err
	}
	sess.Disconnect()
	return nil
}

// Close disconnects every session and stops the dispatch goroutine.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.DisconnectAll()
	close(m.done)
}

func (m *Manager) recordConnected() {
	m.mu.Lock()
	count := 0
	for _, sess := range m.sessions {
		if sess.Connected() {
			count++
		}
	}
	m.mu.Unlock()
	metrics.SetSessionsConnected(count)
}

type nopHandler struct{}

func (nopHandler) OnStateChanged(string, printer.State)   {}
func (nopHandler) OnLifecycleEvent(string, printer.Event) {}
