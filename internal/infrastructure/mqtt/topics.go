package mqtt

import "strings"

// DefaultTopicPrefix is used when the configuration names no prefix.
const DefaultTopicPrefix = "sitedb"

// Topics builds the sitedb topic hierarchy under a prefix:
//
//	<prefix>/changes/<table>   change events, one per committed write
//	<prefix>/status            retained online/offline status
type Topics struct {
	prefix string
}

// NewTopics returns a Topics for prefix. Surrounding slashes are trimmed and
// an empty prefix becomes DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic prefix.
func (t Topics) Prefix() string {
	return t.prefix
}

// Changes returns the change-event topic for table.
//
// Example: sitedb/changes/users
func (t Topics) Changes(table string) string {
	return t.prefix + "/changes/" + table
}

// AllChanges returns a wildcard matching change events for every table.
//
// Example: sitedb/changes/+
func (t Topics) AllChanges() string {
	return t.prefix + "/changes/+"
}

// Status returns the retained status topic.
//
// Example: sitedb/status
func (t Topics) Status() string {
	return t.prefix + "/status"
}

// TableFromChangeTopic extracts the table name from a change topic, reporting
// false for topics outside the change hierarchy.
func (t Topics) TableFromChangeTopic(topic string) (string, bool) {
	table, ok := strings.CutPrefix(topic, t.prefix+"/changes/")
	if !ok || table == "" || strings.Contains(table, "/") {
		return "", false
	}
	return table, true
}
