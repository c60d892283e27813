package process

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/rustfs-launcher/internal/broadcast"
	"github.com/nerrad567/rustfs-launcher/internal/logbuf"
)

// Status represents the current state of the supervised RustFS process.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusLaunching   Status = "launching"
	StatusRunning     Status = "running"
	StatusTerminating Status = "terminating"

	// StatusExited means the tracked child exited on its own and has not
	// been terminated yet.
	StatusExited Status = "exited"
)

// Default log channel capacities.
const (
	DefaultAppLogCapacity     = 100
	DefaultProcessLogCapacity = 1000
)

// Config holds supervisor settings.
type Config struct {
	// BinariesDir overrides <dir of own executable>/binaries.
	BinariesDir string

	// AppLogCapacity is the number of launcher events retained.
	AppLogCapacity int

	// ProcessLogCapacity is the number of RustFS output lines retained.
	ProcessLogCapacity int

	// Inspector checks binaries before they run. Nil selects DefaultInspector.
	Inspector Inspector

	// Clock stamps log entries. Nil uses time.Now.
	Clock func() time.Time
}

// Logger defines the logging interface for the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// RunInfo describes one launched RustFS process.
type RunInfo struct {
	ID        string    `json:"id"`
	PID       int       `json:"pid"`
	Binary    string    `json:"binary"`
	DataPath  string    `json:"data_path"`
	Address   string    `json:"address"`
	StartedAt time.Time `json:"started_at"`
}

// Observer is told about process lifecycle changes. Methods are called
// synchronously from the launching goroutine and the reaper, so
// implementations must return quickly.
type Observer interface {
	ProcessStarted(run RunInfo)
	ProcessExited(run RunInfo, exitStatus string)
}

// logChannel pairs a buffer with the broadcaster. The mutex makes
// append+notify one step so subscribers see entries in buffer order.
type logChannel struct {
	name string
	buf  *logbuf.Buffer
	out  *broadcast.Broadcaster
	mu   sync.Mutex
}

func (c *logChannel) add(msg string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.buf.Append(msg)
	c.out.Notify(c.name, entry)
	return entry
}

// child is a spawned RustFS process.
type child struct {
	run RunInfo
	cmd *exec.Cmd

	exited chan struct{}
	reaped chan struct{} // closed once observers have seen the exit

	mu         sync.Mutex
	exitStatus string
}

func (c *child) hasExited() bool {
	select {
	case <-c.exited:
		return true
	default:
		return false
	}
}

func (c *child) status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitStatus
}

// Supervisor owns the RustFS child process and the launcher's log channels.
// All methods are safe for concurrent use.
type Supervisor struct {
	config    Config
	logger    Logger
	inspector Inspector

	broadcaster *broadcast.Broadcaster
	appLogs     *logChannel
	processLogs *logChannel

	observersMu sync.RWMutex
	observers   []Observer

	// mu guards child and the in-flight operation counts. Never held
	// across spawn, kill or wait.
	mu          sync.Mutex
	child       *child
	launching   int
	terminating int
}

// New creates a Supervisor with empty log buffers and no UI surface.
func New(cfg Config) *Supervisor {
	if cfg.AppLogCapacity < 1 {
		cfg.AppLogCapacity = DefaultAppLogCapacity
	}
	if cfg.ProcessLogCapacity < 1 {
		cfg.ProcessLogCapacity = DefaultProcessLogCapacity
	}
	if cfg.Inspector == nil {
		cfg.Inspector = DefaultInspector()
	}

	var opts []logbuf.Option
	if cfg.Clock != nil {
		opts = append(opts, logbuf.WithClock(cfg.Clock))
	}

	b := broadcast.New()
	return &Supervisor{
		config:      cfg,
		logger:      noopLogger{},
		inspector:   cfg.Inspector,
		broadcaster: b,
		appLogs: &logChannel{
			name: broadcast.ChannelAppLog,
			buf:  logbuf.New(cfg.AppLogCapacity, opts...),
			out:  b,
		},
		processLogs: &logChannel{
			name: broadcast.ChannelProcessLog,
			buf:  logbuf.New(cfg.ProcessLogCapacity, opts...),
			out:  b,
		},
	}
}

// SetLogger sets the logger for the supervisor and its broadcaster.
func (s *Supervisor) SetLogger(logger Logger) {
	s.logger = logger
	s.broadcaster.SetLogger(logger)
}

// Broadcaster returns the broadcaster new log entries are pushed through.
// The UI surface and relay sinks are attached to it.
func (s *Supervisor) Broadcaster() *broadcast.Broadcaster {
	return s.broadcaster
}

// AddObserver registers a lifecycle observer.
func (s *Supervisor) AddObserver(o Observer) {
	if o == nil {
		return
	}
	s.observersMu.Lock()
	s.observers = append(s.observers, o)
	s.observersMu.Unlock()
}

// AppLog records a launcher event in the app log.
func (s *Supervisor) AppLog(msg string) {
	s.appLog(msg)
}

func (s *Supervisor) appLog(msg string) {
	s.appLogs.add(msg)
	s.logger.Info(logbuf.Sanitize(msg), "channel", broadcast.ChannelAppLog)
}

func (s *Supervisor) processLog(msg string) {
	s.processLogs.add(msg)
	s.logger.Debug(logbuf.Sanitize(msg), "channel", broadcast.ChannelProcessLog)
}

// AppLogs returns a snapshot of the launcher event log, oldest first.
func (s *Supervisor) AppLogs() []string {
	return s.appLogs.buf.Snapshot()
}

// ProcessLogs returns a snapshot of the RustFS output log, oldest first.
func (s *Supervisor) ProcessLogs() []string {
	return s.processLogs.buf.Snapshot()
}

// Validate checks that the config names an existing data directory.
func (s *Supervisor) Validate(cfg LaunchConfig) (bool, error) {
	if cfg.DataPath == "" {
		return false, ErrDataPathRequired
	}
	if _, err := os.Stat(cfg.DataPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("%w: %s", ErrDataPathNotExist, cfg.DataPath)
		}
		return false, fmt.Errorf("checking data path %s: %w", cfg.DataPath, err)
	}
	return true, nil
}

// Launch spawns RustFS with cfg and starts capturing its output.
//
// It blocks only for the file system checks and the spawn itself. A
// previously tracked child is not killed; it stops being tracked but is
// still reaped when it exits.
func (s *Supervisor) Launch(ctx context.Context, cfg LaunchConfig) (string, error) {
	s.appLog("Launch command received")
	s.appLog(cfg.summary())

	if cfg.DataPath == "" {
		return "", ErrDataPathRequired
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.launching++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.launching--
		s.mu.Unlock()
	}()

	c, err := s.spawn(cfg)
	if err != nil {
		s.logger.Warn("launch failed", "error", err)
		return "", err
	}

	pid := c.run.PID
	s.mu.Lock()
	prev := s.child
	s.child = c
	s.mu.Unlock()

	if prev != nil && !prev.hasExited() {
		s.logger.Warn("previous RustFS process is no longer tracked", "pid", prev.run.PID)
	}
	s.appLog(fmt.Sprintf("RustFS process registered with PID: %d", pid))

	return fmt.Sprintf("RustFS launched with PID: %d", pid), nil
}

// spawn resolves and inspects the binary, prepares the logs directory and
// starts the child with its readers and reaper running.
func (s *Supervisor) spawn(cfg LaunchConfig) (*child, error) {
	binary, err := s.resolveBinary(cfg.BinaryPath)
	if err != nil {
		return nil, err
	}
	if err := s.inspector.Inspect(binary, s.appLog); err != nil {
		return nil, err
	}

	logsDir := LogsDir(cfg.DataPath)
	s.appLog("Creating logs directory at: " + logsDir)
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating logs directory %s: %w", logsDir, err)
	}

	cmd := exec.Command(binary, cfg.Args()...) //nolint:gosec // Binary is resolved from config or the bundled binaries dir
	cmd.Env = append(os.Environ(), LogDirEnv+"="+logsDir)
	setProcessGroup(cmd)

	// Own the pipes so cmd.Wait returns on child exit even while a
	// descendant outside the group still holds the write ends.
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, stderrW, err := os.Pipe()
	if err != nil {
		stdout.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	s.appLog("Spawning command: " + binary + " " + strings.Join(cfg.RedactedArgs(), " "))

	err = cmd.Start()
	stdoutW.Close()
	stderrW.Close()
	if err != nil {
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("%w: %w", ErrBinaryExecution, err)
	}

	c := &child{
		run: RunInfo{
			ID:        uuid.NewString(),
			PID:       cmd.Process.Pid,
			Binary:    binary,
			DataPath:  cfg.DataPath,
			Address:   cfg.Address(),
			StartedAt: time.Now(),
		},
		cmd:    cmd,
		exited: make(chan struct{}),
		reaped: make(chan struct{}),
	}

	s.logger.Info("rustfs process started", "pid", c.run.PID, "run_id", c.run.ID, "address", c.run.Address)
	s.appLog(fmt.Sprintf("RustFS launched successfully with PID: %d", c.run.PID))
	s.processLog("RustFS process started, capturing output...")

	// Observers hear about the start before the reaper can report an exit
	s.eachObserver(func(o Observer) { o.ProcessStarted(c.run) })

	var readers sync.WaitGroup
	readers.Add(2)
	go s.captureOutput("STDOUT", stdout, &readers)
	go s.captureOutput("STDERR", stderr, &readers)
	go s.reap(c, readersDone(&readers))

	return c, nil
}

// Terminate kills the tracked child and waits for it to exit.
// With nothing tracked it only records that fact.
func (s *Supervisor) Terminate() {
	s.mu.Lock()
	c := s.child
	s.child = nil
	if c != nil {
		s.terminating++
	}
	s.mu.Unlock()

	if c == nil {
		s.appLog("No RustFS process to terminate")
		return
	}
	defer func() {
		s.mu.Lock()
		s.terminating--
		s.mu.Unlock()
	}()

	pid := c.run.PID
	s.appLog(fmt.Sprintf("Terminating RustFS process with PID: %d", pid))

	if c.hasExited() {
		s.appLog(fmt.Sprintf("RustFS process with PID %d had already exited: %s", pid, c.status()))
		<-c.reaped
		return
	}

	if err := killProcess(c.cmd.Process); err != nil {
		s.appLog("Failed to terminate RustFS process: " + err.Error())
		return
	}

	s.appLog("RustFS process terminated successfully")
	<-c.reaped
}

// Status returns the current supervisor state. A terminate in progress
// wins over a concurrent launch.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.terminating > 0:
		return StatusTerminating
	case s.launching > 0:
		return StatusLaunching
	case s.child == nil:
		return StatusIdle
	case s.child.hasExited():
		return StatusExited
	default:
		return StatusRunning
	}
}

// IsRunning reports whether a child is tracked and has not exited.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.child != nil && !s.child.hasExited()
}

// PID returns the tracked child's process ID, or 0 if none is tracked.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.child == nil {
		return 0
	}
	return s.child.run.PID
}

// Stats returns a snapshot of the supervisor for status reporting.
type Stats struct {
	Status            Status        `json:"status"`
	Running           bool          `json:"running"`
	PID               int           `json:"pid,omitempty"`
	RunID             string        `json:"run_id,omitempty"`
	Address           string        `json:"address,omitempty"`
	Uptime            time.Duration `json:"uptime,omitempty"`
	ExitStatus        string        `json:"exit_status,omitempty"`
	AppLogEntries     int           `json:"app_log_entries"`
	ProcessLogEntries int           `json:"process_log_entries"`
}

// Stats returns statistics about the supervised process.
func (s *Supervisor) Stats() Stats {
	st := Stats{
		Status:            s.Status(),
		AppLogEntries:     s.appLogs.buf.Len(),
		ProcessLogEntries: s.processLogs.buf.Len(),
	}

	s.mu.Lock()
	c := s.child
	s.mu.Unlock()

	if c != nil {
		st.PID = c.run.PID
		st.RunID = c.run.ID
		st.Address = c.run.Address
		if c.hasExited() {
			st.ExitStatus = c.status()
		} else {
			st.Running = true
			st.Uptime = time.Since(c.run.StartedAt)
		}
	}
	return st
}

func (s *Supervisor) eachObserver(fn func(Observer)) {
	s.observersMu.RLock()
	observers := append([]Observer(nil), s.observers...)
	s.observersMu.RUnlock()

	for _, o := range observers {
		fn(o)
	}
}
