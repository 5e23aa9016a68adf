package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/olmmcc/sitedb/internal/store"
)

// ChangeEvent is the JSON payload published for each committed write.
type ChangeEvent struct {
	ID           string    `json:"id"`
	Op           string    `json:"op"`
	Table        string    `json:"table"`
	Columns      []string  `json:"columns,omitempty"`
	RowsAffected int64     `json:"rows_affected"`
	LastInsertID int64     `json:"last_insert_id,omitempty"`
	Source       string    `json:"source"`
	Timestamp    time.Time `json:"timestamp"`
}

// publisher is the part of Client used by ChangePublisher.
type publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// ChangePublisher publishes store changes as ChangeEvents on
// <prefix>/changes/<table>. It satisfies store.ChangeNotifier.
type ChangePublisher struct {
	pub    publisher
	topics Topics
	qos    byte
	source string
}

// NewChangePublisher returns a ChangePublisher sending through client with
// the client's configured QoS and topic prefix.
func NewChangePublisher(client *Client) *ChangePublisher {
	return &ChangePublisher{
		pub:    client,
		topics: client.Topics(),
		qos:    byte(client.cfg.QoS),
		source: client.cfg.Broker.ClientID,
	}
}

// NotifyChange publishes change. Values written are never included, only
// the table, column names and counts.
func (p *ChangePublisher) NotifyChange(ctx context.Context, change store.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ts := change.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	payload, err := json.Marshal(ChangeEvent{
		ID:           uuid.NewString(),
		Op:           change.Op,
		Table:        change.Table,
		Columns:      change.Columns,
		RowsAffected: change.RowsAffected,
		LastInsertID: change.LastInsertID,
		Source:       p.source,
		Timestamp:    ts,
	})
	if err != nil {
		return fmt.Errorf("marshalling change event: %w", err)
	}

	return p.pub.Publish(p.topics.Changes(change.Table), payload, p.qos, false)
}

// DecodeChangeEvent parses a change payload received on a change topic.
func DecodeChangeEvent(payload []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ChangeEvent{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if ev.ID == "" || ev.Table == "" || ev.Op == "" {
		return ChangeEvent{}, fmt.Errorf("%w: missing id, op or table", ErrInvalidEvent)
	}
	if _, err := uuid.Parse(ev.ID); err != nil {
		return ChangeEvent{}, fmt.Errorf("%w: id: %w", ErrInvalidEvent, err)
	}
	return ev, nil
}
