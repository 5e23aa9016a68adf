package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/olmmcc/sitedb/internal/infrastructure/influxdb"
	"github.com/olmmcc/sitedb/internal/infrastructure/mqtt"
)

// component is one health-checked connection. A nil check marks a
// component that is disabled in the configuration.
type component struct {
	name  string
	check func(context.Context) error
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the database, MQTT and InfluxDB connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return healthCheck(cmd.Context(), a.stdout, a.components())
		},
	}
}

// components lists the connections the configuration enables. Optional
// clients that failed to connect during setup report ErrNotConnected.
func (a *app) components() []component {
	comps := []component{
		{name: "store", check: a.store.Ping},
		{name: "database", check: a.db.HealthCheck},
	}

	mqttCheck := func(context.Context) error { return mqtt.ErrNotConnected }
	if a.mqtt != nil {
		mqttCheck = a.mqtt.HealthCheck
	}
	if !a.cfg.MQTT.Enabled {
		mqttCheck = nil
	}
	comps = append(comps, component{name: "mqtt", check: mqttCheck})

	influxCheck := func(context.Context) error { return influxdb.ErrNotConnected }
	if a.influx != nil {
		influxCheck = a.influx.HealthCheck
	}
	if !a.cfg.InfluxDB.Enabled {
		influxCheck = nil
	}
	return append(comps, component{name: "influxdb", check: influxCheck})
}

// healthCheck runs every check, printing one status line per component, and
// returns the first failure.
func healthCheck(ctx context.Context, w io.Writer, comps []component) error {
	var first error
	for _, c := range comps {
		status := "disabled"
		if c.check != nil {
			status = "ok"
			if err := c.check(ctx); err != nil {
				status = "failed: " + err.Error()
				if first == nil {
					first = fmt.Errorf("%s: %w", c.name, err)
				}
			}
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", c.name, status); err != nil {
			return err
		}
	}
	return first
}
