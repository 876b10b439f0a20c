// Package emitter relays identifier events and reconciliation reports to an
// MQTT broker.
package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/waltznetworks/video-align/internal/eventbus"
)

// ErrNotConnected is returned by Publish while the broker is unreachable.
var ErrNotConnected = errors.New("emitter: mqtt not connected")

// Options configures the MQTT connection.
type Options struct {
	Broker   string
	ClientID string
	// Topic is the prefix; events go to <Topic>/<role>/<name>, reports to
	// <Topic>/report.
	Topic          string
	QoS            byte
	PublishTimeout time.Duration
}

// MQTTEmitter publishes JSON messages to a broker.
type MQTTEmitter struct {
	opts   Options
	Client mqtt.Client

	mu        sync.RWMutex
	published map[string]uint64
	errors    uint64
	connected bool
}

// NewMQTTEmitter creates an emitter. Connect must be called before Publish.
func NewMQTTEmitter(opts Options) *MQTTEmitter {
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 2 * time.Second
	}
	opts.Topic = strings.TrimSuffix(opts.Topic, "/")
	return &MQTTEmitter{
		opts:      opts,
		published: make(map[string]uint64),
	}
}

// Connect establishes the connection. Later drops reconnect automatically.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	broker := e.opts.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(e.opts.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		slog.Info("emitter: mqtt connection established",
			"broker", broker,
			"client_id", e.opts.ClientID,
		)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		slog.Warn("emitter: mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", broker,
		)
	}

	e.Client = mqtt.NewClient(opts)
	slog.Info("emitter: connecting to mqtt broker", "broker", broker)

	token := e.Client.Connect()
	select {
	case <-token.Done():
	case <-time.After(5 * time.Second):
		return fmt.Errorf("emitter: mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("emitter: mqtt connection failed: %w", err)
	}

	e.setConnected(true)
	return nil
}

// EventTopic returns the topic an event is published to.
func (e *MQTTEmitter) EventTopic(ev eventbus.Event) string {
	role := ev.Role
	if role == "" {
		role = "scan"
	}
	return fmt.Sprintf("%s/%s/%s", e.opts.Topic, role, ev.Name)
}

// PublishEvent publishes ev as JSON.
func (e *MQTTEmitter) PublishEvent(ev eventbus.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		e.recordError()
		return fmt.Errorf("emitter: failed to marshal event: %w", err)
	}
	return e.publish(e.EventTopic(ev), payload)
}

// PublishReport publishes an arbitrary JSON document to <Topic>/report.
func (e *MQTTEmitter) PublishReport(report any) error {
	payload, err := json.Marshal(report)
	if err != nil {
		e.recordError()
		return fmt.Errorf("emitter: failed to marshal report: %w", err)
	}
	return e.publish(e.opts.Topic+"/report", payload)
}

func (e *MQTTEmitter) publish(topic string, payload []byte) error {
	if !e.isConnected() {
		e.recordError()
		return ErrNotConnected
	}

	token := e.Client.Publish(topic, e.opts.QoS, false, payload)
	if !token.WaitTimeout(e.opts.PublishTimeout) {
		e.recordError()
		return fmt.Errorf("emitter: publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		e.recordError()
		return fmt.Errorf("emitter: publish to %s failed: %w", topic, err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	slog.Debug("emitter: published", "topic", topic, "size", len(payload))
	return nil
}

// Run publishes events from ch until it is closed or ctx ends. Publish
// failures are logged and counted, not returned.
func (e *MQTTEmitter) Run(ctx context.Context, ch <-chan eventbus.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := e.PublishEvent(ev); err != nil {
				slog.Warn("emitter: event not published", "payload", ev.Payload, "error", err)
			}
		}
	}
}

// Disconnect closes the connection after a short grace period.
func (e *MQTTEmitter) Disconnect() {
	if e.Client != nil && e.Client.IsConnected() {
		e.Client.Disconnect(250)
		slog.Info("emitter: mqtt disconnected")
	}
	e.setConnected(false)
}

// Stats contains emitter counters.
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

// Stats returns a snapshot of the counters.
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors,
	}
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connected = v
}

func (e *MQTTEmitter) recordError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errors++
}
