package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/olmmcc/sitedb/internal/store"
)

type recordedPublish struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type fakePublisher struct {
	published []recordedPublish
	err       error
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.published = append(f.published, recordedPublish{topic, payload, qos, retained})
	return f.err
}

func TestChangePublisher_NotifyChange(t *testing.T) {
	fake := &fakePublisher{}
	p := &ChangePublisher{pub: fake, topics: NewTopics("site"), qos: 1, source: "sitedb-1"}

	at := time.Date(2019, 3, 1, 12, 0, 0, 0, time.UTC)
	err := p.NotifyChange(context.Background(), store.Change{
		Op:           store.OpUpdate,
		Table:        "pages",
		Columns:      []string{"title", "name"},
		RowsAffected: 2,
		At:           at,
	})
	if err != nil {
		t.Fatalf("NotifyChange() error = %v", err)
	}

	if len(fake.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(fake.published))
	}
	msg := fake.published[0]
	if msg.topic != "site/changes/pages" {
		t.Errorf("topic = %q, want site/changes/pages", msg.topic)
	}
	if msg.qos != 1 || msg.retained {
		t.Errorf("qos/retained = %d/%v, want 1/false", msg.qos, msg.retained)
	}

	ev, err := DecodeChangeEvent(msg.payload)
	if err != nil {
		t.Fatalf("DecodeChangeEvent() error = %v", err)
	}
	if ev.Op != store.OpUpdate || ev.Table != "pages" || ev.RowsAffected != 2 {
		t.Errorf("event = %+v", ev)
	}
	if !ev.Timestamp.Equal(at) {
		t.Errorf("Timestamp = %v, want %v", ev.Timestamp, at)
	}
	if ev.Source != "sitedb-1" {
		t.Errorf("Source = %q, want sitedb-1", ev.Source)
	}
	if _, err := uuid.Parse(ev.ID); err != nil {
		t.Errorf("ID %q is not a UUID: %v", ev.ID, err)
	}
}

func TestChangePublisher_UniqueIDs(t *testing.T) {
	fake := &fakePublisher{}
	p := &ChangePublisher{pub: fake, topics: NewTopics(""), qos: 0}

	for i := 0; i < 3; i++ {
		if err := p.NotifyChange(context.Background(), store.Change{Op: store.OpDelete, Table: "songs"}); err != nil {
			t.Fatalf("NotifyChange() error = %v", err)
		}
	}

	seen := map[string]bool{}
	for _, msg := range fake.published {
		var ev ChangeEvent
		if err := json.Unmarshal(msg.payload, &ev); err != nil {
			t.Fatalf("payload is not JSON: %v", err)
		}
		if seen[ev.ID] {
			t.Errorf("duplicate event ID %q", ev.ID)
		}
		seen[ev.ID] = true
		if ev.Timestamp.IsZero() {
			t.Error("zero change time was not defaulted")
		}
	}
}

func TestChangePublisher_Errors(t *testing.T) {
	fake := &fakePublisher{err: ErrNotConnected}
	p := &ChangePublisher{pub: fake, topics: NewTopics("")}

	err := p.NotifyChange(context.Background(), store.Change{Op: store.OpInsert, Table: "users"})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("NotifyChange() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.NotifyChange(ctx, store.Change{Op: store.OpInsert, Table: "users"}); !errors.Is(err, context.Canceled) {
		t.Errorf("NotifyChange(canceled) error = %v, want context.Canceled", err)
	}
	if len(fake.published) != 1 {
		t.Errorf("published %d messages, want 1 (canceled call must not publish)", len(fake.published))
	}
}

func TestDecodeChangeEvent_Invalid(t *testing.T) {
	payloads := []string{
		`not json`,
		`{}`,
		`{"id":"x","op":"insert","table":"users"}`,
		`{"id":"6f1c1a52-7c3c-4d38-9c1f-0d1f4b8c2a11","op":"insert"}`,
	}
	for _, p := range payloads {
		if _, err := DecodeChangeEvent([]byte(p)); !errors.Is(err, ErrInvalidEvent) {
			t.Errorf("DecodeChangeEvent(%s) error = %v, want ErrInvalidEvent", p, err)
		}
	}
}
