package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waltznetworks/video-align/internal/eventbus"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic   string
	payload []byte
}

// fakeClient records publishes; methods it does not override panic.
type fakeClient struct {
	mqtt.Client

	mu       sync.Mutex
	messages []message
	err      error
}

func (c *fakeClient) IsConnected() bool { return true }
func (c *fakeClient) Disconnect(uint)   {}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message{topic: topic, payload: payload.([]byte)})
	return &fakeToken{err: c.err}
}

func connected(client *fakeClient) *MQTTEmitter {
	e := NewMQTTEmitter(Options{Topic: "video-align/", ClientID: "test"})
	e.Client = client
	e.setConnected(true)
	return e
}

func TestPublishEvent(t *testing.T) {
	client := &fakeClient{}
	e := connected(client)

	ev := eventbus.Event{Name: "frameid-found", Role: "capture", Payload: "f:3", Frame: 7}
	require.NoError(t, e.PublishEvent(ev))

	require.Len(t, client.messages, 1)
	assert.Equal(t, "video-align/capture/frameid-found", client.messages[0].topic)

	var got eventbus.Event
	require.NoError(t, json.Unmarshal(client.messages[0].payload, &got))
	assert.Equal(t, "f:3", got.Payload)
	assert.Equal(t, uint64(7), got.Frame)

	stats := e.Stats()
	assert.Equal(t, uint64(1), stats.Published["video-align/capture/frameid-found"])
	assert.Zero(t, stats.Errors)
}

func TestPublishReport(t *testing.T) {
	client := &fakeClient{}
	e := connected(client)

	require.NoError(t, e.PublishReport(map[string]int{"matched": 2}))
	require.Len(t, client.messages, 1)
	assert.Equal(t, "video-align/report", client.messages[0].topic)
	assert.JSONEq(t, `{"matched":2}`, string(client.messages[0].payload))
}

func TestPublish_Errors(t *testing.T) {
	e := NewMQTTEmitter(Options{Topic: "t"})
	assert.ErrorIs(t, e.PublishEvent(eventbus.Event{Name: "x"}), ErrNotConnected)

	client := &fakeClient{err: errors.New("broker said no")}
	e = connected(client)
	assert.Error(t, e.PublishEvent(eventbus.Event{Name: "x"}))
	assert.Equal(t, uint64(1), e.Stats().Errors)
}

func TestRun_DrainsChannel(t *testing.T) {
	client := &fakeClient{}
	e := connected(client)

	ch := make(chan eventbus.Event, 3)
	ch <- eventbus.Event{Name: "frameid-found", Role: "reference", Payload: "f:0"}
	ch <- eventbus.Event{Name: "frameid-found", Role: "reference", Payload: "f:1"}
	close(ch)

	require.NoError(t, e.Run(context.Background(), ch))
	assert.Len(t, client.messages, 2)
}

func TestRun_Cancelled(t *testing.T) {
	e := connected(&fakeClient{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Run(ctx, make(chan eventbus.Event)), context.Canceled)
}
