// Package influxdb records sitedb statement metrics in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched metric writing and health monitoring.
//
// # Purpose
//
// Every statement the store sends to the database becomes one point in the
// "statements" measurement:
//
//	statements,op=get_like,table=users,status=ok duration_ms=1.42,rows=3i
//
// Rejected tables never reach the database and produce no point.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	st.SetObserver(client)
//
// # Error Handling
//
// Writes are non-blocking; batch errors are delivered to the SetOnError
// callback. Connection and health check errors are returned directly.
package influxdb
