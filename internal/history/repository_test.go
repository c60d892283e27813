package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/rustfs-launcher/internal/infrastructure/database"
	"github.com/nerrad567/rustfs-launcher/internal/process"
	_ "github.com/nerrad567/rustfs-launcher/migrations" // registers schema
)

func openRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestCreateAndGet(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	started := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	run := &Run{
		ID:        "run-1",
		PID:       4242,
		Binary:    "/opt/rustfs/binaries/rustfs",
		DataPath:  "/srv/rustfs/data",
		Address:   "127.0.0.1:9000",
		StartedAt: started,
	}
	if err := repo.Create(ctx, run); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.PID != 4242 || got.Binary != run.Binary || got.Address != run.Address {
		t.Errorf("Get() = %+v, want %+v", got, run)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if got.StoppedAt != nil || got.ExitStatus != "" {
		t.Errorf("new run already stopped: %+v", got)
	}
}

func TestCreate_RequiresID(t *testing.T) {
	repo := openRepo(t)
	if err := repo.Create(context.Background(), &Run{PID: 1}); err == nil {
		t.Error("Create() expected error for empty ID")
	}
}

func TestFinish(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &Run{ID: "run-1", PID: 1, Binary: "b", DataPath: "d", Address: "a"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	stopped := time.Now().Truncate(time.Millisecond)
	if err := repo.Finish(ctx, "run-1", stopped, "signal: killed"); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	got, err := repo.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.StoppedAt == nil || !got.StoppedAt.Equal(stopped) {
		t.Errorf("StoppedAt = %v, want %v", got.StoppedAt, stopped)
	}
	if got.ExitStatus != "signal: killed" {
		t.Errorf("ExitStatus = %q, want %q", got.ExitStatus, "signal: killed")
	}

	if err := repo.Finish(ctx, "missing", stopped, "x"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Finish(missing) error = %v, want ErrRunNotFound", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := openRepo(t)
	if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Get() error = %v, want ErrRunNotFound", err)
	}
}

func TestList(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		run := &Run{ID: id, PID: i + 1, Binary: "b", DataPath: "d", Address: "x", StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.Create(ctx, run); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"default limit", 0, []string{"c", "b", "a"}},
		{"limited", 2, []string{"c", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := repo.List(ctx, tt.limit)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(runs) != len(tt.want) {
				t.Fatalf("List() returned %d runs, want %d", len(runs), len(tt.want))
			}
			for i, id := range tt.want {
				if runs[i].ID != id {
					t.Errorf("runs[%d].ID = %q, want %q", i, runs[i].ID, id)
				}
			}
		})
	}
}

func TestList_SubSecondOrdering(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	// Whole seconds and fractions must interleave correctly
	starts := map[string]time.Time{
		"whole":      base,
		"tenth":      base.Add(100 * time.Millisecond),
		"next-whole": base.Add(time.Second),
		"micro":      base.Add(time.Second + time.Microsecond),
	}
	for _, id := range []string{"tenth", "whole", "micro", "next-whole"} {
		run := &Run{ID: id, PID: 1, Binary: "b", DataPath: "d", Address: "x", StartedAt: starts[id]}
		if err := repo.Create(ctx, run); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	runs, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"micro", "next-whole", "tenth", "whole"}
	if len(runs) != len(want) {
		t.Fatalf("List() returned %d runs, want %d", len(runs), len(want))
	}
	for i, id := range want {
		if runs[i].ID != id {
			t.Errorf("runs[%d].ID = %q, want %q", i, runs[i].ID, id)
		}
		if !runs[i].StartedAt.Equal(starts[runs[i].ID]) {
			t.Errorf("runs[%d].StartedAt = %v, want %v", i, runs[i].StartedAt, starts[runs[i].ID])
		}
	}
}

func TestCloseStale(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()

	for _, id := range []string{"open-1", "open-2", "done"} {
		if err := repo.Create(ctx, &Run{ID: id, PID: 1, Binary: "b", DataPath: "d", Address: "a"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.Finish(ctx, "done", time.Now(), "exit status 0"); err != nil {
		t.Fatal(err)
	}

	n, err := repo.CloseStale(ctx, time.Now(), "launcher restarted")
	if err != nil {
		t.Fatalf("CloseStale() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CloseStale() = %d, want 2", n)
	}

	done, _ := repo.Get(ctx, "done") //nolint:errcheck // asserted below
	if done.ExitStatus != "exit status 0" {
		t.Errorf("finished run overwritten: %q", done.ExitStatus)
	}
}

func TestRecorder(t *testing.T) {
	repo := openRepo(t)
	rec := NewRecorder(repo)
	stopped := time.Date(2026, 10, 16, 13, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return stopped }

	info := process.RunInfo{
		ID:        "run-rec",
		PID:       77,
		Binary:    "/bin/rustfs",
		DataPath:  "/data",
		Address:   "127.0.0.1:9000",
		StartedAt: stopped.Add(-time.Hour),
	}
	rec.ProcessStarted(info)
	rec.ProcessExited(info, "exit status 0")

	got, err := repo.Get(context.Background(), "run-rec")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.PID != 77 || got.ExitStatus != "exit status 0" {
		t.Errorf("recorded run = %+v", got)
	}
	if got.StoppedAt == nil || !got.StoppedAt.Equal(stopped) {
		t.Errorf("StoppedAt = %v, want %v", got.StoppedAt, stopped)
	}
}

type countingLogger struct{ warns int }

func (l *countingLogger) Warn(string, ...any) { l.warns++ }

func TestRecorder_LogsFailures(t *testing.T) {
	repo := openRepo(t)
	rec := NewRecorder(repo)
	logger := &countingLogger{}
	rec.SetLogger(logger)

	// Exit without a start has no row to update
	rec.ProcessExited(process.RunInfo{ID: "ghost"}, "exit status 1")

	if logger.warns != 1 {
		t.Errorf("warns = %d, want 1", logger.warns)
	}
}
