package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andreyvit/diff"

	"github.com/olmmcc/sitedb/internal/infrastructure/mqtt"
	"github.com/olmmcc/sitedb/internal/store"
)

// writeSQLiteConfig writes a config pointing at a fresh sqlite file and
// returns its path.
func writeSQLiteConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "sitedb.yaml")

	configContent := `
database:
  driver: sqlite3
  path: "` + filepath.Join(dir, "site.db") + `"

logging:
  level: error
  output: discard
` + extra
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

// sitedb runs one command against configPath and returns its stdout.
func sitedb(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	err := run(ctx, append([]string{"--config", configPath}, args...), &stdout, &stderr)
	return stdout.String(), err
}

func mustSitedb(t *testing.T, configPath string, args ...string) string {
	t.Helper()
	out, err := sitedb(t, configPath, args...)
	if err != nil {
		t.Fatalf("sitedb %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func assertOutput(t *testing.T, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("output mismatch:\n%v", diff.LineDiff(want, got))
	}
}

// migratedConfig returns a config whose database has the site schema and
// two users.
func migratedConfig(t *testing.T) string {
	t.Helper()
	configPath := writeSQLiteConfig(t, "")
	assertOutput(t, mustSitedb(t, configPath, "migrate"), "migrations complete\n")
	assertOutput(t,
		mustSitedb(t, configPath, "insert", "users", "name=Alice", "email=alice@example.com"),
		"1 rows inserted (last insert id 1)\n")
	assertOutput(t,
		mustSitedb(t, configPath, "insert", "users", "name=Bob", "email="),
		"1 rows inserted (last insert id 2)\n")
	return configPath
}

func TestRun_InvalidConfig(t *testing.T) {
	_, err := sitedb(t, "/nonexistent/path/sitedb.yaml", "tables")
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_UnknownFormat(t *testing.T) {
	configPath := writeSQLiteConfig(t, "")
	if _, err := sitedb(t, configPath, "--format", "csv", "tables"); err == nil {
		t.Fatal("run() should reject an unknown output format")
	}
}

func TestVersion_NeedsNoConfig(t *testing.T) {
	out, err := sitedb(t, "/nonexistent/path/sitedb.yaml", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	assertOutput(t, out, "sitedb dev (commit unknown, built unknown)\n")
}

func TestTables(t *testing.T) {
	configPath := writeSQLiteConfig(t, `
store:
  tables: [users, pages]
`)
	assertOutput(t, mustSitedb(t, configPath, "--format", "tsv", "tables"), "table\npages\nusers\n")
}

func TestReadCommands(t *testing.T) {
	configPath := migratedConfig(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "all ordered",
			args: []string{"all", "users", "--order"},
			want: "id\tname\temail\n1\tAlice\talice@example.com\n2\tBob\tNULL\n",
		},
		{
			name: "like",
			args: []string{"like", "users", "name", "Al%"},
			want: "id\tname\temail\n1\tAlice\talice@example.com\n",
		},
		{
			name: "like with columns",
			args: []string{"like", "users", "name", "%o%", "--columns", "name"},
			want: "name\nBob\n",
		},
		{
			name: "some",
			args: []string{"some", "users", "id, name"},
			want: "id\tname\n1\tAlice\n2\tBob\n",
		},
		{
			name: "some where like",
			args: []string{"some", "users", "email", "--where", "name", "--like", "Alice"},
			want: "email\nalice@example.com\n",
		},
		{
			name: "some null",
			args: []string{"some", "users", "name", "--null", "email"},
			want: "name\nBob\n",
		},
		{
			name: "exists",
			args: []string{"exists", "users", "name", "Bob"},
			want: "true\n",
		},
		{
			name: "not exists",
			args: []string{"exists", "users", "name", "Zed"},
			want: "false\n",
		},
		{
			name: "max id",
			args: []string{"max-id", "users"},
			want: "2\n",
		},
		{
			name: "min id",
			args: []string{"min-id", "users"},
			want: "1\n",
		},
		{
			name: "columns",
			args: []string{"columns", "users"},
			want: "name\ttype\tnotnull\tdflt_value\tpk\n" +
				"id\tINTEGER\t0\tNULL\t1\n" +
				"name\tTEXT\t1\tNULL\t0\n" +
				"email\tTEXT\t0\tNULL\t0\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--format", "tsv"}, tt.args...)
			assertOutput(t, mustSitedb(t, configPath, args...), tt.want)
		})
	}
}

func TestWriteCommands(t *testing.T) {
	configPath := migratedConfig(t)

	assertOutput(t,
		mustSitedb(t, configPath, "update", "users", "name", "Bob", "email", "bob@example.com"),
		"1 rows updated\n")
	assertOutput(t,
		mustSitedb(t, configPath, "update", "users", "name", "Nobody", "email", "x"),
		"0 rows updated\n")
	assertOutput(t,
		mustSitedb(t, configPath, "delete", "users", "name", "Alice"),
		"1 rows deleted\n")
	assertOutput(t,
		mustSitedb(t, configPath, "--format", "tsv", "all", "users"),
		"id\tname\temail\n2\tBob\tbob@example.com\n")
}

func TestTableOutput(t *testing.T) {
	configPath := migratedConfig(t)

	out := mustSitedb(t, configPath, "all", "users", "--order")
	for _, want := range []string{"name", "Alice", "alice@example.com", "NULL"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestRejectedTable(t *testing.T) {
	configPath := migratedConfig(t)

	for _, args := range [][]string{
		{"all", "secrets"},
		{"insert", "secrets", "k=v"},
		{"max-id", "users; DROP TABLE users"},
	} {
		_, err := sitedb(t, configPath, args...)
		if !errors.Is(err, store.ErrTableNotAllowed) {
			t.Errorf("sitedb %v error = %v, want ErrTableNotAllowed", args, err)
		}
	}

	// The users table is untouched.
	assertOutput(t, mustSitedb(t, configPath, "max-id", "users"), "2\n")
}

func TestMaxID_EmptyTable(t *testing.T) {
	configPath := writeSQLiteConfig(t, "")
	mustSitedb(t, configPath, "migrate")

	_, err := sitedb(t, configPath, "max-id", "songs")
	if !errors.Is(err, store.ErrEmptyTable) {
		t.Errorf("max-id on empty table error = %v, want ErrEmptyTable", err)
	}
}

func TestMigrateStatusAndDown(t *testing.T) {
	configPath := writeSQLiteConfig(t, "")

	out := mustSitedb(t, configPath, "--format", "tsv", "migrate", "--status")
	assertOutput(t, out, "version\tstate\tapplied_at\n20190301_120000\tpending\tNULL\n")

	mustSitedb(t, configPath, "migrate")
	out = mustSitedb(t, configPath, "--format", "tsv", "migrate", "--status")
	if !strings.Contains(out, "20190301_120000\tapplied\t") {
		t.Errorf("status after migrate = %q", out)
	}

	assertOutput(t, mustSitedb(t, configPath, "migrate", "--down"), "rolled back 1 migration\n")
	if _, err := sitedb(t, configPath, "all", "users"); err == nil {
		t.Error("all users should fail after the schema is rolled back")
	}
}

func TestColumnAllowlist(t *testing.T) {
	configPath := writeSQLiteConfig(t, `
store:
  columns:
    users: [id, name]
`)
	mustSitedb(t, configPath, "migrate")

	if _, err := sitedb(t, configPath, "insert", "users", "name=Carol", "email=c@example.com"); !errors.Is(err, store.ErrColumnNotAllowed) {
		t.Errorf("insert with disallowed column error = %v, want ErrColumnNotAllowed", err)
	}
	assertOutput(t,
		mustSitedb(t, configPath, "insert", "users", "name=Carol"),
		"1 rows inserted (last insert id 1)\n")
}

func TestWatch_RequiresMQTT(t *testing.T) {
	configPath := writeSQLiteConfig(t, "")
	if _, err := sitedb(t, configPath, "watch"); err == nil {
		t.Error("watch should fail when MQTT is disabled")
	}
}

func TestWatchEvents_StopsAfterCount(t *testing.T) {
	events := make(chan mqtt.ChangeEvent, 2)
	ts := time.Date(2019, 3, 1, 12, 0, 0, 0, time.UTC)
	events <- mqtt.ChangeEvent{Op: store.OpInsert, Table: "users", RowsAffected: 1, LastInsertID: 7, Source: "sitedb", Timestamp: ts}
	events <- mqtt.ChangeEvent{Op: store.OpDelete, Table: "songs", RowsAffected: 3, Source: "sitedb", Timestamp: ts}

	var out bytes.Buffer
	if err := watchEvents(make(chan struct{}), events, 2, &out); err != nil {
		t.Fatalf("watchEvents: %v", err)
	}
	assertOutput(t, out.String(),
		"2019-03-01T12:00:00Z\tinsert\tusers\trows=1\tid=7\tsource=sitedb\n"+
			"2019-03-01T12:00:00Z\tdelete\tsongs\trows=3\tid=0\tsource=sitedb\n")
}

func TestDecodeTopicEvent(t *testing.T) {
	topics := mqtt.NewTopics("olmmcc")
	payload := []byte(`{"id":"6f1c2d3e-4a5b-4c6d-8e7f-901234567890","op":"insert","table":"users","rows_affected":1,"source":"sitedb"}`)

	ev, err := decodeTopicEvent(topics, "olmmcc/changes/users", payload)
	if err != nil {
		t.Fatalf("decodeTopicEvent() error = %v", err)
	}
	if ev.Table != "users" || ev.Op != store.OpInsert {
		t.Errorf("decodeTopicEvent() = %+v", ev)
	}

	for _, topic := range []string{"olmmcc/changes/songs", "olmmcc/status", "other/changes/users"} {
		if _, err := decodeTopicEvent(topics, topic, payload); !errors.Is(err, mqtt.ErrInvalidEvent) {
			t.Errorf("decodeTopicEvent(%q) error = %v, want ErrInvalidEvent", topic, err)
		}
	}
}

func TestHealth(t *testing.T) {
	configPath := writeSQLiteConfig(t, "")
	assertOutput(t, mustSitedb(t, configPath, "health"),
		"store\tok\ndatabase\tok\nmqtt\tdisabled\ninfluxdb\tdisabled\n")
}

func TestHealthCheck_ReturnsFirstFailure(t *testing.T) {
	down := errors.New("connection refused")
	comps := []component{
		{name: "database", check: func(context.Context) error { return nil }},
		{name: "mqtt", check: func(context.Context) error { return mqtt.ErrNotConnected }},
		{name: "influxdb", check: func(context.Context) error { return down }},
		{name: "spare"},
	}

	var out bytes.Buffer
	err := healthCheck(context.Background(), &out, comps)
	if !errors.Is(err, mqtt.ErrNotConnected) || !strings.HasPrefix(err.Error(), "mqtt: ") {
		t.Errorf("healthCheck() error = %v, want mqtt: ErrNotConnected", err)
	}
	assertOutput(t, out.String(),
		"database\tok\n"+
			"mqtt\tfailed: mqtt: client not connected\n"+
			"influxdb\tfailed: connection refused\n"+
			"spare\tdisabled\n")
}

func TestParseAssignments(t *testing.T) {
	columns, values, err := parseAssignments([]string{"name=Alice", "note=a=b", "email="})
	if err != nil {
		t.Fatalf("parseAssignments: %v", err)
	}
	assertOutput(t, strings.Join(columns, ",")+"\n", "name,note,email\n")
	assertOutput(t, strings.Join(values, ",")+"\n", "Alice,a=b,\n")

	for _, bad := range []string{"name", "=value"} {
		if _, _, err := parseAssignments([]string{bad}); err == nil {
			t.Errorf("parseAssignments(%q) should fail", bad)
		}
	}
}

func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("SITEDB_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/sitedb.yaml"
	t.Setenv("SITEDB_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}
