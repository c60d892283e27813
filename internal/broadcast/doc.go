// Package broadcast pushes freshly appended log entries to the live UI.
//
// The UI surface is registered once, when the launcher's HTTP server is
// listening; until then every notification is a silent no-op. Optional
// relay sinks (MQTT, InfluxDB) receive the same entries through a bounded
// queue, so a slow sink never stalls the log append path. Delivery is
// best-effort and fire-and-forget: failures and overflow are logged at
// debug level and never reach the caller.
package broadcast
