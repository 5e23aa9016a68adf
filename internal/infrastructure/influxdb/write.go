package influxdb

import (
	"errors"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/olmmcc/sitedb/internal/store"
)

// MeasurementStatements is the measurement holding one point per statement.
const MeasurementStatements = "statements"

// Statement status tag values.
const (
	StatusOK              = "ok"
	StatusExecutionError  = "execution_error"
	StatusConversionError = "conversion_error"
	StatusOtherError      = "error"
)

// ObserveStatement records a store statement as a point in the statements
// measurement. It satisfies store.StatementObserver. The write is
// non-blocking; data is batched and sent asynchronously.
func (c *Client) ObserveStatement(stats store.StatementStats) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(statementPoint(stats, time.Now()))
}

// statementPoint builds the point for one statement.
//
// Tags: op, table, status. Fields: duration_ms, rows.
func statementPoint(stats store.StatementStats, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementStatements,
		map[string]string{
			"op":     stats.Op,
			"table":  stats.Table,
			"status": statementStatus(stats.Err),
		},
		map[string]interface{}{
			"duration_ms": float64(stats.Duration) / float64(time.Millisecond),
			"rows":        stats.Rows,
		},
		ts,
	)
}

// statementStatus classifies a statement error for the status tag.
func statementStatus(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, store.ErrExecution):
		return StatusExecutionError
	case errors.Is(err, store.ErrConversion):
		return StatusConversionError
	default:
		return StatusOtherError
	}
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Example:
//
//	client.WritePoint("store_pool",
//	    map[string]string{"driver": "mysql"},
//	    map[string]interface{}{"open_connections": 3, "in_use": 1})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
