package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/olmmcc/sitedb/internal/infrastructure/mqtt"
)

func newWatchCmd(a *app) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "watch [table]",
		Short: "Print change events published by sitedb writers",
		Long: "Subscribe to the MQTT change events for one allowlisted table, " +
			"or for every table, and print one line per event until interrupted.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.mqtt == nil {
				return errors.New("watch needs a reachable MQTT broker (mqtt.enabled)")
			}

			topics := a.mqtt.Topics()
			topic := topics.AllChanges()
			if len(args) == 1 {
				table, err := a.store.Allowlist().CheckTable(args[0])
				if err != nil {
					return err
				}
				topic = topics.Changes(table)
			}

			// Cancelled on return so handlers never block on a gone reader.
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			events := make(chan mqtt.ChangeEvent)
			err := a.mqtt.Subscribe(topic, byte(a.cfg.MQTT.QoS), func(msgTopic string, payload []byte) error {
				ev, err := decodeTopicEvent(topics, msgTopic, payload)
				if err != nil {
					return err
				}
				select {
				case events <- ev:
				case <-ctx.Done():
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("subscribing to %s: %w", topic, err)
			}
			defer a.mqtt.Unsubscribe(topic) //nolint:errcheck // Best effort on exit

			a.log.Info("watching change events", "prefix", topics.Prefix(), "topic", topic)
			return watchEvents(ctx.Done(), events, count, a.stdout)
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "exit after `n` events (0 watches until interrupted)")
	return cmd
}

// decodeTopicEvent decodes a change event and rejects it unless its table
// matches the table named by the topic it arrived on.
func decodeTopicEvent(topics mqtt.Topics, topic string, payload []byte) (mqtt.ChangeEvent, error) {
	table, ok := topics.TableFromChangeTopic(topic)
	if !ok {
		return mqtt.ChangeEvent{}, fmt.Errorf("%w: topic %q is not a change topic", mqtt.ErrInvalidEvent, topic)
	}
	ev, err := mqtt.DecodeChangeEvent(payload)
	if err != nil {
		return mqtt.ChangeEvent{}, err
	}
	if ev.Table != table {
		return mqtt.ChangeEvent{}, fmt.Errorf("%w: table %q published on %q", mqtt.ErrInvalidEvent, ev.Table, topic)
	}
	return ev, nil
}

// watchEvents prints events until done closes or count events were seen.
// Handlers only hand events over; all printing happens here.
func watchEvents(done <-chan struct{}, events <-chan mqtt.ChangeEvent, count int, w io.Writer) error {
	seen := 0
	for {
		select {
		case <-done:
			return nil
		case ev := <-events:
			_, err := fmt.Fprintf(w, "%s\t%s\t%s\trows=%d\tid=%d\tsource=%s\n",
				ev.Timestamp.UTC().Format(time.RFC3339), ev.Op, ev.Table,
				ev.RowsAffected, ev.LastInsertID, ev.Source)
			if err != nil {
				return err
			}
			seen++
			if count > 0 && seen >= count {
				return nil
			}
		}
	}
}
