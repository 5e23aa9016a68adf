// sitedb - allowlisted access to the olmmcc site database.
//
// The sitedb command runs the site's data-access operations (lookups,
// inserts, updates, deletes and id aggregates) against the configured
// MySQL, PostgreSQL or SQLite database. Only tables on the configured
// allowlist can be reached.
//
// Writes are announced on MQTT when enabled, and every statement is
// recorded in InfluxDB when enabled.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/olmmcc/sitedb/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/sitedb.yaml"

func main() {
	// Interrupts cancel in-flight statements; the connection is still released.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes one sitedb command, separated from main for testability.
// Command results go to stdout; logs go where the configuration says.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{
		stdout: stdout,
		stderr: stderr,
	}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	return root.ExecuteContext(ctx)
}

// getConfigPath returns the configuration file path.
// Uses SITEDB_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SITEDB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
