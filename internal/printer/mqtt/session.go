package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/maziggy/bambusy/internal/observability/metrics"
	printer "github.com/maziggy/bambusy/internal/printer/domain"
)

const (
	brokerPort     = 8883
	brokerUser     = "bblp"
	connectTimeout = 10 * time.Second
)

// Config carries the connection parameters for a single printer.
type Config struct {
	DeviceID   string
	Host       string
	Serial     string
	AccessCode string
}

// Handler receives state snapshots and lifecycle events from a session.
type Handler interface {
	OnStateChanged(deviceID string, state printer.State)
	OnLifecycleEvent(deviceID string, event printer.Event)
}

// client is the subset of the paho client a session relies on.
type client interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	IsConnected() bool
}

// Session maintains the MQTT link to one printer and folds its reports
// into an in-memory state.
type Session struct {
	cfg     Config
	handler Handler
	logger  zerolog.Logger

	dial func(opts *paho.ClientOptions) client

	mu         sync.Mutex
	cli        client
	connecting bool
	ready      chan struct{}
	state      printer.State
	tracker    printer.Tracker
	capture    bool
	msgLog     *MessageLog
}

// NewSession creates a session for the given printer.
func NewSession(cfg Config, handler Handler, logger zerolog.Logger) (*Session, error) {
	if cfg.DeviceID == "" {
		return nil, errors.New("mqtt: device id is required")
	}
	if cfg.Host == "" {
		return nil, errors.New("mqtt: host is required")
	}
	if cfg.Serial == "" {
		return nil, errors.New("mqtt: serial is required")
	}
	if handler == nil {
		return nil, errors.New("mqtt: handler is required")
	}
	return &Session{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With().Str("device_id", cfg.DeviceID).Logger(),
		dial: func(opts *paho.ClientOptions) client {
			return paho.NewClient(opts)
		},
		state:  printer.NewState(),
		msgLog: NewMessageLog(DefaultLogCapacity),
	}, nil
}

func (s *Session) reportTopic() string {
	return fmt.Sprintf("device/%s/report", s.cfg.Serial)
}

func (s *Session) requestTopic() string {
	return fmt.Sprintf("device/%s/request", s.cfg.Serial)
}

// Connect establishes the MQTT link, subscribes to the report topic and
// asks the printer for a full state push. It returns only once the
// report subscription is acknowledged. It is a no-op when the session is
// already connected or a connect is in flight.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.connecting || (s.cli != nil && s.cli.IsConnected()) {
		s.mu.Unlock()
		return nil
	}
	s.connecting = true
	s.ready = make(chan struct{}, 1)
	ready := s.ready
	dial := s.dial
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.connecting = false
		s.mu.Unlock()
	}()

	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("ssl://%s:%d", s.cfg.Host, brokerPort)).
		SetClientID("bambusy_" + s.cfg.Serial).
		SetUsername(brokerUser).
		SetPassword(s.cfg.AccessCode).
		SetTLSConfig(&tls.Config{InsecureSkipVerify: true}).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(s.onConnectionLost)

	cli := dial(opts)
	if err := s.waitToken(ctx, cli.Connect()); err != nil {
		return fmt.Errorf("mqtt: connect %s: %w", s.cfg.Host, err)
	}

	// The link is up, but the report subscription happens in bootstrap
	// on paho's connect callback. Success is only reported once that
	// subscription is acknowledged.
	select {
	case <-ready:
	case <-ctx.Done():
		cli.Disconnect(250)
		return fmt.Errorf("mqtt: subscribe %s: %w", s.cfg.Host, ctx.Err())
	}

	s.mu.Lock()
	s.cli = cli
	s.mu.Unlock()
	return nil
}

func (s *Session) onConnect(cli paho.Client) {
	s.bootstrap(cli)
}

// bootstrap runs on every (re)connect, including paho auto-reconnects,
// so the subscription and the pushall request survive broker restarts.
func (s *Session) bootstrap(cli client) {
	if token := cli.Subscribe(s.reportTopic(), 0, s.onMessage); token.Wait() && token.Error() != nil {
		s.logger.Error().Err(token.Error()).Msg("subscribe failed")
		return
	}

	payload, err := json.Marshal(PushAllCommand())
	if err != nil {
		s.logger.Error().Err(err).Msg("marshal pushall failed")
		return
	}
	if token := cli.Publish(s.requestTopic(), 0, false, payload); token.Wait() && token.Error() != nil {
		s.logger.Warn().Err(token.Error()).Msg("pushall request failed")
	}

	s.setConnected(true)
	s.signalReady()
	s.logger.Info().Str("host", s.cfg.Host).Msg("printer connected")
}

func (s *Session) signalReady() {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()
	if ready == nil {
		return
	}
	select {
	case ready <- struct{}{}:
	default:
	}
}

func (s *Session) onConnectionLost(_ paho.Client, err error) {
	s.setConnected(false)
	s.logger.Warn().Err(err).Msg("printer connection lost")
}

func (s *Session) setConnected(connected bool) {
	s.mu.Lock()
	s.state.Connected = connected
	snapshot := s.state.Clone()
	s.mu.Unlock()

	s.handler.OnStateChanged(s.cfg.DeviceID, snapshot)
}

func (s *Session) onMessage(_ paho.Client, msg paho.Message) {
	s.captureMessage(msg.Topic(), "in", msg.Payload())

	delta, err := printer.ParseReport(msg.Payload())
	if err != nil {
		metrics.IncTelemetryDropped("malformed")
		s.logger.Warn().Err(err).Msg("dropping malformed report")
		return
	}
	if delta == nil {
		return
	}
	metrics.IncTelemetryMessage(s.cfg.DeviceID)

	started := time.Now()
	s.mu.Lock()
	printer.Reduce(&s.state, delta)
	events := s.tracker.Observe(&s.state)
	snapshot := s.state.Clone()
	s.mu.Unlock()
	metrics.ObserveReduce(time.Since(started))

	s.handler.OnStateChanged(s.cfg.DeviceID, snapshot)
	for _, event := range events {
		metrics.IncLifecycleEvent(string(event.Kind))
		s.handler.OnLifecycleEvent(s.cfg.DeviceID, event)
	}
}

// Disconnect tears the MQTT link down. Calling it on a disconnected
// session is a no-op.
func (s *Session) Disconnect() {
	s.mu.Lock()
	cli := s.cli
	s.cli = nil
	s.mu.Unlock()

	if cli == nil {
		return
	}
	cli.Disconnect(250)
	s.setConnected(false)
}

// Connected reports whether the MQTT link is currently up.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cli != nil && s.cli.IsConnected()
}

// State returns a snapshot of the current printer state.
func (s *Session) State() printer.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// SendCommand publishes a command on the request topic. It reports
// whether the command was handed to the broker.
func (s *Session) SendCommand(command map[string]any) bool {
	s.mu.Lock()
	cli := s.cli
	s.mu.Unlock()

	if cli == nil || !cli.IsConnected() {
		return false
	}

	payload, err := json.Marshal(command)
	if err != nil {
		s.logger.Error().Err(err).Msg("marshal command failed")
		return false
	}

	s.captureMessage(s.requestTopic(), "out", payload)
	if token := cli.Publish(s.requestTopic(), 0, false, payload); token.Wait() && token.Error() != nil {
		s.logger.Error().Err(token.Error()).Msg("publish command failed")
		return false
	}
	return true
}

// EnableCapture toggles message capture. Disabling clears the ring log.
func (s *Session) EnableCapture(enabled bool) {
	s.mu.Lock()
	s.capture = enabled
	s.mu.Unlock()
	if !enabled {
		s.msgLog.Clear()
	}
}

// CaptureEnabled reports whether message capture is active.
func (s *Session) CaptureEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capture
}

// Logs returns the captured messages, oldest first.
func (s *Session) Logs() []LogEntry {
	return s.msgLog.Entries()
}

// ClearLogs drops all captured messages.
func (s *Session) ClearLogs() {
	s.msgLog.Clear()
}

func (s *Session) captureMessage(topic, direction string, payload []byte) {
	s.mu.Lock()
	enabled := s.capture
	s.mu.Unlock()
	if !enabled {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Topic:     topic,
		Direction: direction,
	}
	if json.Valid(payload) {
		entry.Payload = json.RawMessage(append([]byte(nil), payload...))
	} else {
		raw, _ := json.Marshal(string(payload))
		entry.Payload = raw
	}
	s.msgLog.Append(entry)
}

// waitToken waits for a paho token to settle or the context to expire.
func (s *Session) waitToken(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
