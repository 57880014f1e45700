package emitter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func doneToken(err error) *fakeToken {
	ch := make(chan struct{})
	close(ch)
	return &fakeToken{err: err, done: ch}
}

func pendingToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type message struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient implements the subset of mqtt.Client the emitter uses; the
// embedded interface panics on anything else.
type fakeClient struct {
	mqtt.Client

	opts         *mqtt.ClientOptions
	connectToken mqtt.Token
	publishToken func() mqtt.Token

	mu          sync.Mutex
	messages    []message
	disconnects int
}

func (c *fakeClient) Connect() mqtt.Token { return c.connectToken }
func (c *fakeClient) IsConnected() bool  { return true }

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	c.disconnects++
	c.mu.Unlock()
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	c.messages = append(c.messages, message{topic: topic, qos: qos, payload: payload.([]byte)})
	c.mu.Unlock()
	if c.publishToken != nil {
		return c.publishToken()
	}
	return doneToken(nil)
}

func newTestEmitter(cfg Config, fake *fakeClient) *MQTTEmitter {
	e := NewMQTTEmitter(cfg)
	e.newClient = func(opts *mqtt.ClientOptions) mqtt.Client {
		fake.opts = opts
		return fake
	}
	return e
}

var testConfig = Config{
	Broker:      "localhost:1883",
	ClientID:    "capture-test",
	TopicPrefix: "lab/cam1/",
	QoS:         1,
}

func TestConnect(t *testing.T) {
	fake := &fakeClient{connectToken: doneToken(nil)}
	e := newTestEmitter(testConfig, fake)

	require.NoError(t, e.Connect(context.Background()))
	assert.True(t, e.IsConnected())

	require.Len(t, fake.opts.Servers, 1)
	assert.Equal(t, "tcp://localhost:1883", fake.opts.Servers[0].String())
	assert.Equal(t, "capture-test", fake.opts.ClientID)
	assert.True(t, fake.opts.AutoReconnect)
	assert.True(t, fake.opts.ConnectRetry)

	// Broker callbacks drive the connection flag.
	fake.opts.OnConnectionLost(fake, errors.New("broker went away"))
	assert.False(t, e.IsConnected())
	fake.opts.OnConnect(fake)
	assert.True(t, e.IsConnected())
}

func TestConnect_Failures(t *testing.T) {
	t.Run("no broker", func(t *testing.T) {
		e := newTestEmitter(Config{}, &fakeClient{})
		assert.Error(t, e.Connect(context.Background()))
	})

	t.Run("token error", func(t *testing.T) {
		refused := errors.New("connection refused")
		e := newTestEmitter(testConfig, &fakeClient{connectToken: doneToken(refused)})
		err := e.Connect(context.Background())
		assert.ErrorIs(t, err, refused)
		assert.False(t, e.IsConnected())
	})

	t.Run("cancelled while connecting", func(t *testing.T) {
		e := newTestEmitter(testConfig, &fakeClient{connectToken: pendingToken()})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, e.Connect(ctx), context.Canceled)
		assert.False(t, e.IsConnected())
	})
}

func TestPublish_NotConnected(t *testing.T) {
	e := newTestEmitter(testConfig, &fakeClient{})

	err := e.PublishStats(StatsEvent{FramesDecoded: 1})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, uint64(1), e.Stats().Errors)
}

func TestPublishSizeChanged(t *testing.T) {
	fake := &fakeClient{connectToken: doneToken(nil)}
	e := newTestEmitter(testConfig, fake)
	require.NoError(t, e.Connect(context.Background()))

	before := time.Now()
	require.NoError(t, e.PublishSizeChanged(SizeChangedEvent{
		Path:   "/tmp/video.fifo",
		Width:  640,
		Height: 480,
	}))

	require.Len(t, fake.messages, 1)
	msg := fake.messages[0]
	assert.Equal(t, "lab/cam1/size", msg.topic)
	assert.Equal(t, byte(1), msg.qos)

	var got SizeChangedEvent
	require.NoError(t, msgpack.Unmarshal(msg.payload, &got))
	assert.Equal(t, 640, got.Width)
	assert.Equal(t, 480, got.Height)
	assert.Equal(t, "/tmp/video.fifo", got.Path)
	_, err := uuid.Parse(got.ID)
	assert.NoError(t, err)
	assert.WithinDuration(t, before, got.Timestamp, time.Second)

	assert.Equal(t, map[string]uint64{"lab/cam1/size": 1}, e.Stats().Published)
}

func TestPublishStats_UniqueIDs(t *testing.T) {
	fake := &fakeClient{connectToken: doneToken(nil)}
	e := newTestEmitter(testConfig, fake)
	require.NoError(t, e.Connect(context.Background()))

	require.NoError(t, e.PublishStats(StatsEvent{FramesDecoded: 10, Connected: true}))
	require.NoError(t, e.PublishStats(StatsEvent{FramesDecoded: 20, Connected: true}))

	var first, second StatsEvent
	require.NoError(t, msgpack.Unmarshal(fake.messages[0].payload, &first))
	require.NoError(t, msgpack.Unmarshal(fake.messages[1].payload, &second))

	assert.Equal(t, "lab/cam1/stats", fake.messages[1].topic)
	assert.Equal(t, uint64(20), second.FramesDecoded)
	assert.True(t, second.Connected)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, uint64(2), e.Stats().Published["lab/cam1/stats"])
}

func TestPublish_BrokerError(t *testing.T) {
	rejected := errors.New("not authorized")
	fake := &fakeClient{
		connectToken: doneToken(nil),
		publishToken: func() mqtt.Token { return doneToken(rejected) },
	}
	e := newTestEmitter(testConfig, fake)
	require.NoError(t, e.Connect(context.Background()))

	err := e.Publish(TopicStats, map[string]int{"x": 1})
	assert.ErrorIs(t, err, rejected)
	assert.Equal(t, uint64(1), e.Stats().Errors)
	assert.Empty(t, e.Stats().Published)
}

func TestDisconnect(t *testing.T) {
	fake := &fakeClient{connectToken: doneToken(nil)}
	e := newTestEmitter(testConfig, fake)

	require.NoError(t, e.Disconnect(), "disconnect before connect")
	require.NoError(t, e.Connect(context.Background()))
	require.NoError(t, e.Disconnect())

	assert.False(t, e.IsConnected())
	assert.Equal(t, 1, fake.disconnects)
}

func TestBrokerURL(t *testing.T) {
	assert.Equal(t, "tcp://broker:1883", brokerURL("broker:1883"))
	assert.Equal(t, "ssl://broker:8883", brokerURL("ssl://broker:8883"))
}
