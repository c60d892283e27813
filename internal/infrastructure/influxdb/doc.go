// Package influxdb records launcher activity as InfluxDB time series.
//
// It wraps the official influxdb-client-go v2 library. Two measurements
// are written:
//   - log_lines: one point per log entry (tag channel, field count=1), so
//     output rate per channel can be graphed
//   - process_lifecycle: one point per RustFS start/exit (tag event,
//     fields pid, run_id, exit_status)
//
// Log text itself is never written; it stays in the in-memory buffers.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	sink := influxdb.NewSink(client)
//	supervisor.Broadcaster().AddSink(sink)
//	supervisor.AddObserver(sink)
//
// # Thread Safety
//
// All methods are safe for concurrent use. The write API is non-blocking
// and batched (batch_size, flush_interval); asynchronous write errors are
// delivered through SetOnError.
package influxdb
