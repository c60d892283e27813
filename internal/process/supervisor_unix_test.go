//go:build unix

package process

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

// exitObserver forwards lifecycle callbacks to channels.
type exitObserver struct {
	started chan RunInfo
	exited  chan string
}

func newExitObserver() *exitObserver {
	return &exitObserver{
		started: make(chan RunInfo, 4),
		exited:  make(chan string, 4),
	}
}

func (o *exitObserver) ProcessStarted(run RunInfo)             { o.started <- run }
func (o *exitObserver) ProcessExited(_ RunInfo, status string) { o.exited <- status }

func (o *exitObserver) waitExit(t *testing.T) string {
	t.Helper()
	select {
	case status := <-o.exited:
		return status
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for process exit")
		return ""
	}
}

// fixture lays out <root>/binaries/rustfs and <root>/data.
type fixture struct {
	root     string
	binaries string
	dataPath string
}

func newFixture(t *testing.T, script string) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		root:     root,
		binaries: filepath.Join(root, "binaries"),
		dataPath: filepath.Join(root, "data"),
	}
	if err := os.MkdirAll(f.binaries, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(f.dataPath, 0o755); err != nil {
		t.Fatal(err)
	}
	stub := filepath.Join(f.binaries, BinaryName("linux"))
	if err := os.WriteFile(stub, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f fixture) launchConfig() LaunchConfig {
	cfg := DefaultLaunchConfig()
	cfg.DataPath = f.dataPath
	return cfg
}

func newUnixSupervisor(t *testing.T, f fixture) (*Supervisor, *exitObserver) {
	t.Helper()
	s := New(Config{BinariesDir: f.binaries, Inspector: UnixInspector{}})
	obs := newExitObserver()
	s.AddObserver(obs)
	t.Cleanup(s.Terminate)
	return s, obs
}

func TestLaunch_CapturesOutput(t *testing.T) {
	f := newFixture(t, `echo hello
printf '\033[31mboom\033[0m\n' >&2
echo
echo "dir=$RUSTFS_OBS_LOG_DIRECTORY"
echo "args=$*"`)
	s, obs := newUnixSupervisor(t, f)
	surface := &recordingSurface{}
	s.Broadcaster().SetSurface(surface)

	msg, err := s.Launch(context.Background(), f.launchConfig())
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	run := <-obs.started
	if want := "RustFS launched with PID: "; !strings.HasPrefix(msg, want) {
		t.Errorf("Launch() = %q, want prefix %q", msg, want)
	}

	if status := obs.waitExit(t); status != "exit status 0" {
		t.Errorf("exit status = %q, want %q", status, "exit status 0")
	}

	logs := s.ProcessLogs()
	logsDir := filepath.Join(f.root, "logs")
	for _, want := range []string{
		"RustFS process started, capturing output...",
		"[STDOUT] hello",
		"[STDERR] boom",
		"[STDOUT] dir=" + logsDir,
		"[STDOUT] args=" + f.dataPath + " --address 127.0.0.1:9000 --access-key rustfsadmin --secret-key rustfsadmin",
	} {
		if !hasEntry(logs, want) {
			t.Errorf("ProcessLogs() missing %q: %v", want, logs)
		}
	}
	for _, e := range logs {
		if strings.HasSuffix(e, "[STDOUT] ") || strings.HasSuffix(e, "[STDOUT]") {
			t.Errorf("empty line recorded: %q", e)
		}
	}

	if info, err := os.Stat(logsDir); err != nil || !info.IsDir() {
		t.Errorf("logs directory %s not created: %v", logsDir, err)
	}

	app := s.AppLogs()
	for _, want := range []string{
		"Launch command received",
		"RustFS launched successfully with PID: " + strconv.Itoa(run.PID),
		"RustFS process registered with PID: " + strconv.Itoa(run.PID),
		"Creating logs directory at: " + logsDir,
	} {
		if !hasEntry(app, want) {
			t.Errorf("AppLogs() missing %q: %v", want, app)
		}
	}
	for _, e := range app {
		if strings.Contains(e, "Spawning command:") && strings.Contains(e, "--secret-key rustfsadmin") {
			t.Errorf("secret key logged: %q", e)
		}
	}

	// Every process entry reached the surface in buffer order
	var emitted []string
	for _, ev := range surface.snapshot() {
		if entry, ok := strings.CutPrefix(ev, "process-log|"); ok {
			emitted = append(emitted, entry)
		}
	}
	if len(emitted) != len(logs) {
		t.Fatalf("emitted %d process entries, buffer has %d", len(emitted), len(logs))
	}

	if s.Status() != StatusExited {
		t.Errorf("Status() = %q, want %q", s.Status(), StatusExited)
	}
	if s.IsRunning() {
		t.Error("IsRunning() = true after exit")
	}
}

func TestLaunch_StdoutOrderPreserved(t *testing.T) {
	f := newFixture(t, `i=1
while [ $i -le 200 ]; do echo "line $i"; i=$((i+1)); done`)
	s, obs := newUnixSupervisor(t, f)

	if _, err := s.Launch(context.Background(), f.launchConfig()); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	obs.waitExit(t)

	next := 1
	for _, e := range s.ProcessLogs() {
		_, rest, ok := strings.Cut(e, "[STDOUT] line ")
		if !ok {
			continue
		}
		if rest != strconv.Itoa(next) {
			t.Fatalf("got line %s, want %d", rest, next)
		}
		next++
	}
	if next != 201 {
		t.Errorf("saw %d lines, want 200", next-1)
	}
}

func TestTerminate_KillsProcessGroup(t *testing.T) {
	// The shell forks sleep, so only a group kill stops the script
	f := newFixture(t, `echo ready
sleep 60
echo unreachable`)
	s, obs := newUnixSupervisor(t, f)

	if _, err := s.Launch(context.Background(), f.launchConfig()); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	run := <-obs.started

	if !s.IsRunning() || s.Status() != StatusRunning {
		t.Fatalf("IsRunning() = %v, Status() = %q; want running", s.IsRunning(), s.Status())
	}
	if s.PID() != run.PID {
		t.Errorf("PID() = %d, want %d", s.PID(), run.PID)
	}

	done := make(chan struct{})
	go func() {
		s.Terminate()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Terminate() did not return")
	}

	if status := obs.waitExit(t); status != "signal: killed" {
		t.Errorf("exit status = %q, want %q", status, "signal: killed")
	}
	if s.IsRunning() || s.Status() != StatusIdle || s.PID() != 0 {
		t.Errorf("after Terminate: IsRunning=%v Status=%q PID=%d", s.IsRunning(), s.Status(), s.PID())
	}

	app := s.AppLogs()
	for _, want := range []string{
		"Terminating RustFS process with PID: " + strconv.Itoa(run.PID),
		"RustFS process terminated successfully",
	} {
		if !hasEntry(app, want) {
			t.Errorf("AppLogs() missing %q: %v", want, app)
		}
	}
	if hasEntry(s.ProcessLogs(), "[STDOUT] unreachable") {
		t.Error("process kept running after Terminate")
	}

	// Slot was consumed
	s.Terminate()
	if last := s.AppLogs()[len(s.AppLogs())-1]; !strings.HasSuffix(last, "No RustFS process to terminate") {
		t.Errorf("second Terminate logged %q", last)
	}
}

// escapedPID waits for the stub to report the PID of a descendant that
// left the process group, and kills it when the test ends.
func escapedPID(t *testing.T, s *Supervisor) int {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, e := range s.ProcessLogs() {
			if _, rest, ok := strings.Cut(e, "[STDOUT] escaped="); ok {
				pid, err := strconv.Atoi(rest)
				if err != nil {
					t.Fatalf("bad pid line %q", e)
				}
				t.Cleanup(func() { _ = syscall.Kill(pid, syscall.SIGKILL) })
				return pid
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("stub never reported its escaped descendant")
	return 0
}

func TestTerminate_DescendantHoldingOutputOpen(t *testing.T) {
	if _, err := exec.LookPath("setsid"); err != nil {
		t.Skip("setsid not available")
	}
	f := newFixture(t, `setsid sleep 30 &
echo "escaped=$!"
exec sleep 60`)
	s, obs := newUnixSupervisor(t, f)

	if _, err := s.Launch(context.Background(), f.launchConfig()); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	<-obs.started
	escapedPID(t, s)

	start := time.Now()
	done := make(chan struct{})
	go func() {
		s.Terminate()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Terminate() waited on the escaped descendant")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Terminate() took %v", elapsed)
	}

	if status := obs.waitExit(t); status != "signal: killed" {
		t.Errorf("exit status = %q, want %q", status, "signal: killed")
	}
	if s.Status() != StatusIdle {
		t.Errorf("Status() = %q, want idle", s.Status())
	}
}

func TestLaunch_ExitReportedWhileDescendantHoldsOutput(t *testing.T) {
	if _, err := exec.LookPath("setsid"); err != nil {
		t.Skip("setsid not available")
	}
	f := newFixture(t, `setsid sleep 30 &
echo "escaped=$!"
exit 4`)
	s, obs := newUnixSupervisor(t, f)

	if _, err := s.Launch(context.Background(), f.launchConfig()); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	escapedPID(t, s)

	select {
	case status := <-obs.exited:
		if status != "exit status 4" {
			t.Errorf("exit status = %q, want %q", status, "exit status 4")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("exit not reported while a descendant holds the output pipes")
	}
	if s.IsRunning() || s.Status() != StatusExited {
		t.Errorf("IsRunning() = %v, Status() = %q; want exited", s.IsRunning(), s.Status())
	}
}

// gatedObserver blocks ProcessExited until release is closed.
type gatedObserver struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (o *gatedObserver) ProcessStarted(RunInfo) {}

func (o *gatedObserver) ProcessExited(RunInfo, string) {
	o.once.Do(func() {
		close(o.entered)
		<-o.release
	})
}

func TestStatus_TerminateOverlapsLaunch(t *testing.T) {
	f := newFixture(t, `sleep 60`)
	s, obs := newUnixSupervisor(t, f)
	gate := &gatedObserver{entered: make(chan struct{}), release: make(chan struct{})}
	s.AddObserver(gate)

	if _, err := s.Launch(context.Background(), f.launchConfig()); err != nil {
		t.Fatalf("first Launch() error = %v", err)
	}
	<-obs.started

	terminated := make(chan struct{})
	go func() {
		s.Terminate()
		close(terminated)
	}()
	select {
	case <-gate.entered:
	case <-time.After(10 * time.Second):
		close(gate.release)
		t.Fatal("first child was not reaped")
	}

	// Terminate is parked in the exit notification; a full launch runs meanwhile
	if _, err := s.Launch(context.Background(), f.launchConfig()); err != nil {
		close(gate.release)
		t.Fatalf("second Launch() error = %v", err)
	}
	if got := s.Status(); got != StatusTerminating {
		t.Errorf("Status() during terminate = %q, want %q", got, StatusTerminating)
	}

	close(gate.release)
	<-terminated
	if got := s.Status(); got != StatusRunning {
		t.Errorf("Status() after terminate = %q, want %q", got, StatusRunning)
	}
}

func TestTerminate_AlreadyExited(t *testing.T) {
	f := newFixture(t, `exit 3`)
	s, obs := newUnixSupervisor(t, f)

	if _, err := s.Launch(context.Background(), f.launchConfig()); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if status := obs.waitExit(t); status != "exit status 3" {
		t.Errorf("exit status = %q, want %q", status, "exit status 3")
	}

	s.Terminate()
	app := s.AppLogs()
	if !strings.Contains(app[len(app)-1], "had already exited: exit status 3") {
		t.Errorf("last app log = %q, want already-exited note", app[len(app)-1])
	}
	if s.Status() != StatusIdle {
		t.Errorf("Status() = %q, want idle", s.Status())
	}
}

func TestLaunch_SecondLaunchReplacesTrackedChild(t *testing.T) {
	f := newFixture(t, `sleep 60`)
	s, obs := newUnixSupervisor(t, f)

	if _, err := s.Launch(context.Background(), f.launchConfig()); err != nil {
		t.Fatalf("first Launch() error = %v", err)
	}
	first := <-obs.started
	t.Cleanup(func() { _ = syscall.Kill(-first.PID, syscall.SIGKILL) })

	if _, err := s.Launch(context.Background(), f.launchConfig()); err != nil {
		t.Fatalf("second Launch() error = %v", err)
	}
	second := <-obs.started

	if first.ID == second.ID || first.PID == second.PID {
		t.Fatalf("second launch reused run %+v", first)
	}
	if s.PID() != second.PID {
		t.Errorf("PID() = %d, want second child %d", s.PID(), second.PID)
	}

	s.Terminate()
	obs.waitExit(t)

	// The untracked first child was not killed
	if err := syscall.Kill(first.PID, 0); err != nil {
		t.Errorf("first child signal check: %v, want still alive", err)
	}
}

func TestLaunch_NotExecutable(t *testing.T) {
	f := newFixture(t, `echo hi`)
	if err := os.Chmod(filepath.Join(f.binaries, "rustfs"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, _ := newUnixSupervisor(t, f)

	_, err := s.Launch(context.Background(), f.launchConfig())
	if !errors.Is(err, ErrBinaryExecution) {
		t.Fatalf("Launch() error = %v, want ErrBinaryExecution", err)
	}
	if !hasEntry(s.AppLogs(), "WARNING: Binary is not executable") {
		t.Errorf("AppLogs() missing permission warning: %v", s.AppLogs())
	}
	if s.IsRunning() || s.Status() != StatusIdle {
		t.Errorf("after failed spawn: IsRunning=%v Status=%q", s.IsRunning(), s.Status())
	}
}

func TestLaunch_ExplicitBinaryPath(t *testing.T) {
	f := newFixture(t, `echo default`)
	custom := filepath.Join(f.root, "custom-rustfs")
	if err := os.WriteFile(custom, []byte("#!/bin/sh\necho custom\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	s, obs := newUnixSupervisor(t, f)

	cfg := f.launchConfig()
	cfg.BinaryPath = custom
	if _, err := s.Launch(context.Background(), cfg); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	obs.waitExit(t)

	if !hasEntry(s.ProcessLogs(), "[STDOUT] custom") {
		t.Errorf("ProcessLogs() = %v, want custom binary output", s.ProcessLogs())
	}
}

func TestDiagnose(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		wantMsg string
		wantErr error
	}{
		{
			name:    "help succeeds",
			script:  `echo "Usage: rustfs [OPTIONS] <VOLUMES>"`,
			wantMsg: "RustFS binary appears to be working",
		},
		{
			name:    "help fails",
			script:  "echo broken >&2\nexit 2",
			wantErr: ErrBinaryFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.script)
			s, _ := newUnixSupervisor(t, f)

			msg, err := s.Diagnose(context.Background())
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Fatalf("Diagnose() error = %v, want %v", err, tt.wantErr)
			}
			if msg != tt.wantMsg {
				t.Errorf("Diagnose() = %q, want %q", msg, tt.wantMsg)
			}

			app := s.AppLogs()
			if !hasEntry(app, "Starting RustFS binary diagnosis...") {
				t.Errorf("AppLogs() missing diagnosis start: %v", app)
			}
			if !hasEntry(app, "Testing binary with --help: "+filepath.Join(f.binaries, "rustfs")) {
				t.Errorf("AppLogs() missing --help test line: %v", app)
			}
		})
	}
}

func TestDiagnose_TruncatesHelp(t *testing.T) {
	f := newFixture(t, `i=0
while [ $i -lt 50 ]; do printf 'abcdefghij'; i=$((i+1)); done`)
	s, _ := newUnixSupervisor(t, f)

	if _, err := s.Diagnose(context.Background()); err != nil {
		t.Fatalf("Diagnose() error = %v", err)
	}
	want := "Binary --help stdout (first 200 chars): " + strings.Repeat("abcdefghij", 20)
	if !hasEntry(s.AppLogs(), want) {
		t.Errorf("AppLogs() missing truncated help: %v", s.AppLogs())
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t, `echo up
sleep 60`)
	s, obs := newUnixSupervisor(t, f)

	if _, err := s.Launch(context.Background(), f.launchConfig()); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	run := <-obs.started

	st := s.Stats()
	if !st.Running || st.PID != run.PID || st.RunID != run.ID {
		t.Errorf("Stats() = %+v, want running run %s", st, run.ID)
	}
	if st.Address != "127.0.0.1:9000" {
		t.Errorf("Stats().Address = %q", st.Address)
	}
	if st.AppLogEntries == 0 {
		t.Error("Stats().AppLogEntries = 0")
	}
}
