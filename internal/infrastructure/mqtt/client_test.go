package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/olmmcc/sitedb/internal/infrastructure/config"
	"github.com/olmmcc/sitedb/internal/store"
)

// testConfig returns an MQTT configuration for a local broker at
// 127.0.0.1:1883. Tests needing the broker skip when it is absent.
func testConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS:         1,
		TopicPrefix: "sitedb-test",
	}
}

// connectOrSkip connects to the local broker or skips the test.
func connectOrSkip(t *testing.T, clientID string) *Client {
	t.Helper()
	client, err := Connect(testConfig(clientID))
	if err != nil {
		t.Skipf("MQTT broker not available: %v", err)
	}
	t.Cleanup(func() {
		client.Close() //nolint:errcheck // Test cleanup
	})
	return client
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	client := connectOrSkip(t, "sitedb-test-connect")

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnectInvalidBroker(t *testing.T) {
	cfg := testConfig("sitedb-test-invalid")
	cfg.Broker.Port = 19999

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestHealthCheck_Disconnected(t *testing.T) {
	client := &Client{}

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(canceled) error = %v, want context.Canceled", err)
	}
}

// =============================================================================
// Validation Tests
// =============================================================================

func TestPublish_Validation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "sitedb/changes/users", []byte("x"), 3, ErrInvalidQoS},
		{"payload too large", "sitedb/changes/users", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "sitedb/changes/users", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Subscribe("sitedb/#", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v, want ErrInvalidQoS", err)
	}
	if err := client.Subscribe("sitedb/#", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := client.Subscribe("sitedb/#", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(disconnected) error = %v, want ErrNotConnected", err)
	}
	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig("sitedb-opts")
	cfg.Auth = config.MQTTAuthConfig{Username: "site", Password: "pw"}
	cfg.Broker.TLS = true

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [ssl://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "sitedb-opts" {
		t.Errorf("ClientID = %q, want sitedb-opts", opts.ClientID)
	}
	if opts.Username != "site" || opts.Password != "pw" {
		t.Errorf("credentials = %q/%q, want site/pw", opts.Username, opts.Password)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config not applied")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig("sitedb-lwt"))
	configureLWT(opts, NewTopics("site"), "sitedb-lwt")

	if !opts.WillEnabled || opts.WillTopic != "site/status" || !opts.WillRetained {
		t.Errorf("will = enabled:%v topic:%q retained:%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
	if !strings.Contains(string(opts.WillPayload), `"status":"offline"`) {
		t.Errorf("will payload = %s, want offline status", opts.WillPayload)
	}
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopics(t *testing.T) {
	topics := NewTopics("/olmmcc/")

	tests := map[string]string{
		topics.Changes("users"): "olmmcc/changes/users",
		topics.AllChanges():     "olmmcc/changes/+",
		topics.Status():         "olmmcc/status",
		topics.Prefix():         "olmmcc",
	}
	for got, want := range tests {
		if got != want {
			t.Errorf("topic = %q, want %q", got, want)
		}
	}

	if got := NewTopics("").Changes("pages"); got != "sitedb/changes/pages" {
		t.Errorf("default prefix topic = %q, want sitedb/changes/pages", got)
	}

	if table, ok := topics.TableFromChangeTopic("olmmcc/changes/songs"); !ok || table != "songs" {
		t.Errorf("TableFromChangeTopic() = %q, %v, want songs, true", table, ok)
	}
	for _, bad := range []string{"olmmcc/status", "olmmcc/changes/", "olmmcc/changes/a/b", "other/changes/songs"} {
		if _, ok := topics.TableFromChangeTopic(bad); ok {
			t.Errorf("TableFromChangeTopic(%q) ok = true, want false", bad)
		}
	}
}

// =============================================================================
// Handler Tests
// =============================================================================

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type captureLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *captureLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *captureLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func TestWrapHandler(t *testing.T) {
	client := &Client{}
	logger := &captureLogger{}
	client.SetLogger(logger)

	msg := fakeMessage{topic: "sitedb/changes/users", payload: []byte("{}")}

	client.wrapHandler(func(string, []byte) error {
		return errors.New("handler error")
	})(nil, msg)

	client.wrapHandler(func(string, []byte) error {
		panic("boom")
	})(nil, msg)

	if len(logger.warns) != 1 {
		t.Errorf("warnings = %v, want one for the handler error", logger.warns)
	}
	if len(logger.errors) != 1 {
		t.Errorf("errors = %v, want one for the recovered panic", logger.errors)
	}
}

// =============================================================================
// Broker Round Trip
// =============================================================================

func TestChangePublisher_Roundtrip(t *testing.T) {
	sub := connectOrSkip(t, "sitedb-test-sub")
	pub := connectOrSkip(t, "sitedb-test-pub")

	received := make(chan ChangeEvent, 1)
	err := sub.Subscribe(sub.Topics().AllChanges(), 1, func(topic string, payload []byte) error {
		ev, err := DecodeChangeEvent(payload)
		if err != nil {
			return err
		}
		if table, ok := sub.Topics().TableFromChangeTopic(topic); !ok || table != ev.Table {
			t.Errorf("topic %q does not match event table %q", topic, ev.Table)
		}
		received <- ev
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// Give subscription time to register
	time.Sleep(100 * time.Millisecond)

	publisher := NewChangePublisher(pub)
	err = publisher.NotifyChange(context.Background(), store.Change{
		Op:           store.OpInsert,
		Table:        "users",
		Columns:      []string{"name", "email"},
		RowsAffected: 1,
		LastInsertID: 7,
	})
	if err != nil {
		t.Fatalf("NotifyChange() error = %v", err)
	}

	select {
	case ev := <-received:
		if ev.Op != store.OpInsert || ev.LastInsertID != 7 || ev.Source != "sitedb-test-pub" {
			t.Errorf("received event = %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for change event")
	}

	if err := sub.Unsubscribe(sub.Topics().AllChanges()); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if sub.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after Unsubscribe, want 0", sub.SubscriptionCount())
	}
}
