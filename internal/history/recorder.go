package history

import (
	"context"
	"time"

	"github.com/nerrad567/rustfs-launcher/internal/process"
)

// writeTimeout bounds each history write so a locked database cannot stall
// the supervisor.
const writeTimeout = 5 * time.Second

// Logger defines the logging interface for the recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Recorder writes supervisor lifecycle events to a Repository.
// It implements process.Observer.
type Recorder struct {
	repo   Repository
	logger Logger
	now    func() time.Time
}

// NewRecorder creates a recorder over repo.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo, logger: noopLogger{}, now: time.Now}
}

// SetLogger sets the logger used for write failures.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// ProcessStarted inserts a run.
func (r *Recorder) ProcessStarted(info process.RunInfo) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	run := &Run{
		ID:        info.ID,
		PID:       info.PID,
		Binary:    info.Binary,
		DataPath:  info.DataPath,
		Address:   info.Address,
		StartedAt: info.StartedAt,
	}
	if err := r.repo.Create(ctx, run); err != nil {
		r.logger.Warn("failed to record run start", "run_id", info.ID, "error", err)
	}
}

// ProcessExited marks the run stopped.
func (r *Recorder) ProcessExited(info process.RunInfo, exitStatus string) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.repo.Finish(ctx, info.ID, r.now(), exitStatus); err != nil {
		r.logger.Warn("failed to record run stop", "run_id", info.ID, "error", err)
	}
}

var _ process.Observer = (*Recorder)(nil)
