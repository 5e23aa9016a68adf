package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/olmmcc/sitedb/internal/infrastructure/config"
	"github.com/olmmcc/sitedb/internal/infrastructure/database"
	"github.com/olmmcc/sitedb/internal/infrastructure/influxdb"
	"github.com/olmmcc/sitedb/internal/infrastructure/logging"
	"github.com/olmmcc/sitedb/internal/infrastructure/mqtt"
	"github.com/olmmcc/sitedb/internal/store"
)

// annotationNoSetup marks commands that run without config or database.
const annotationNoSetup = "sitedb/no-setup"

// app carries the flags and the connections shared by every subcommand.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	format     string
	driver     string
	dsn        string

	cfg    *config.Config
	log    *logging.Logger
	db     *database.DB
	store  *store.Store
	mqtt   *mqtt.Client
	influx *influxdb.Client
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "sitedb",
		Short: "Allowlisted access to the site database",
		Long: "sitedb runs lookups, inserts, updates, deletes and id aggregates " +
			"against the site database. Only allowlisted tables can be reached.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.preRun,
	}

	fs := root.PersistentFlags()
	fs.StringVar(&a.configPath, "config", getConfigPath(), "`file` to load config from (.yaml or .hcl)")
	fs.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	fs.StringVar(&a.format, "format", formatTable, "output format: table or tsv")
	fs.StringVar(&a.driver, "driver", "", "database driver: mysql, postgres or sqlite3")
	fs.StringVar(&a.dsn, "dsn", "", "database `dsn`, used verbatim")

	root.AddCommand(
		newTablesCmd(a),
		newColumnsCmd(a),
		newAllCmd(a),
		newLikeCmd(a),
		newSomeCmd(a),
		newExistsCmd(a),
		newInsertCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newMaxIDCmd(a),
		newMinIDCmd(a),
		newMigrateCmd(a),
		newWatchCmd(a),
		newHealthCmd(a),
		newVersionCmd(),
	)

	return root
}

// preRun loads the configuration, applies flag overrides and opens the
// connections the subcommand needs.
func (a *app) preRun(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[annotationNoSetup] != "" {
		return nil
	}
	if err := checkFormat(a.format); err != nil {
		return err
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Only flags given on the command line override the file.
	cmd.Flags().Visit(func(flg *pflag.Flag) {
		switch flg.Name {
		case "log-level":
			cfg.Logging.Level = a.logLevel
		case "driver":
			cfg.Database.Driver = a.driver
		case "dsn":
			cfg.Database.DSN = a.dsn
		}
	})

	return a.setup(cmd.Context(), cfg)
}

// setup opens the database and the optional MQTT and InfluxDB clients.
// MQTT and InfluxDB are best effort: when unreachable the command still runs
// without change events or statement metrics.
func (a *app) setup(ctx context.Context, cfg *config.Config) error {
	a.cfg = cfg
	a.log = logging.New(cfg.Logging, version)

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	a.db = db
	a.log.Debug("database connected", "driver", db.Driver())

	allowlist, err := buildAllowlist(cfg)
	if err != nil {
		return err
	}

	st, err := store.New(db, allowlist)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	st.SetLogger(a.log.With("component", "store"))
	a.store = st

	if cfg.MQTT.Enabled {
		client, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			a.log.Warn("MQTT unavailable, change events disabled", "error", mqttErr)
		} else {
			client.SetLogger(a.log.With("component", "mqtt"))
			a.mqtt = client
			st.SetNotifier(mqtt.NewChangePublisher(client))
			a.log.Debug("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"client_id", cfg.MQTT.Broker.ClientID,
			)
		}
	}

	if cfg.InfluxDB.Enabled {
		client, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			a.log.Warn("InfluxDB unavailable, statement metrics disabled", "error", influxErr)
		} else {
			client.SetOnError(func(err error) {
				a.log.Error("InfluxDB write error", "error", err)
			})
			a.influx = client
			st.SetObserver(client)
			a.log.Debug("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	return nil
}

// buildAllowlist returns the table allowlist with any per-table column
// restrictions from the configuration.
func buildAllowlist(cfg *config.Config) (store.Allowlist, error) {
	allowlist := store.NewAllowlist(cfg.AllowedTables()...)

	tables := make([]string, 0, len(cfg.Store.Columns))
	for table := range cfg.Store.Columns {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		var err error
		allowlist, err = allowlist.WithColumns(table, cfg.Store.Columns[table]...)
		if err != nil {
			return store.Allowlist{}, fmt.Errorf("store.columns.%s: %w", table, err)
		}
	}
	return allowlist, nil
}

// close releases connections in reverse order of opening. Pool statistics
// are written to InfluxDB before it is closed.
func (a *app) close() {
	if a.influx != nil {
		if a.db != nil {
			a.writePoolStats()
		}
		if err := a.influx.Close(); err != nil {
			a.log.Error("error closing InfluxDB", "error", err)
		}
	}
	if a.mqtt != nil {
		if err := a.mqtt.Close(); err != nil {
			a.log.Error("error closing MQTT", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Error("error closing database", "error", err)
		}
	}
}

func (a *app) writePoolStats() {
	stats := a.db.Stats()
	a.influx.WritePoint("store_pool",
		map[string]string{"driver": a.db.Driver()},
		map[string]interface{}{
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
			"wait_count":       stats.WaitCount,
			"wait_ms":          float64(stats.WaitDuration) / float64(time.Millisecond),
		})
}
