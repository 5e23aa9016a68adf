// Package mqtt publishes sitedb change events to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS guarantees
//   - Topic subscriptions with wildcard support (used by `sitedb watch`)
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
//	<prefix>/changes/<table>   one ChangeEvent per committed insert/update/delete
//	<prefix>/status            retained online/offline status
//
// Change events carry the operation, table, column names and row counts. The
// written values are never published.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	st.SetNotifier(mqtt.NewChangePublisher(client))
//
// Publishing is best effort: the store logs a failed notification and keeps
// the write.
package mqtt
