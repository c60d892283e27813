package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/rustfs-launcher/internal/process"
)

// Measurement names.
const (
	MeasurementLogLines  = "log_lines"
	MeasurementLifecycle = "process_lifecycle"
)

// Lifecycle event tags.
const (
	EventStarted = "started"
	EventExited  = "exited"
)

// LogLinePoint builds the point recorded for one log entry.
func LogLinePoint(channel string, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementLogLines,
		map[string]string{"channel": channel},
		map[string]any{"count": 1},
		at,
	)
}

// LifecyclePoint builds the point recorded for a RustFS start or exit.
// run_id is a field, not a tag, to keep series cardinality flat.
func LifecyclePoint(event string, run process.RunInfo, exitStatus string, at time.Time) *write.Point {
	fields := map[string]any{
		"pid":    run.PID,
		"run_id": run.ID,
	}
	if exitStatus != "" {
		fields["exit_status"] = exitStatus
	}
	return write.NewPoint(
		MeasurementLifecycle,
		map[string]string{"event": event},
		fields,
		at,
	)
}

// pointWriter is the part of Client the sink needs.
type pointWriter interface {
	WritePoint(p *write.Point)
}

// Sink writes launcher activity to InfluxDB.
// It implements broadcast.Sink and process.Observer.
type Sink struct {
	w   pointWriter
	now func() time.Time
}

// NewSink creates a sink writing through client.
func NewSink(client *Client) *Sink {
	return &Sink{w: client, now: time.Now}
}

// Relay counts one entry on channel. The write is queued, never blocking.
func (s *Sink) Relay(channel, _ string) error {
	s.w.WritePoint(LogLinePoint(channel, s.now()))
	return nil
}

// ProcessStarted records a start event.
func (s *Sink) ProcessStarted(run process.RunInfo) {
	s.w.WritePoint(LifecyclePoint(EventStarted, run, "", s.now()))
}

// ProcessExited records an exit event.
func (s *Sink) ProcessExited(run process.RunInfo, exitStatus string) {
	s.w.WritePoint(LifecyclePoint(EventExited, run, exitStatus, s.now()))
}

var _ process.Observer = (*Sink)(nil)
