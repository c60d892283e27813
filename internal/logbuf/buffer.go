package logbuf

import (
	"sync"
	"time"
)

// timestampLayout is the time-of-day prefix written before every entry.
const timestampLayout = "15:04:05"

// Buffer is a capacity-limited, append-only log channel.
//
// Entries are kept in insertion order. When an append would exceed the
// capacity, the oldest entry is evicted.
type Buffer struct {
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	entries []string
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithClock overrides the time source used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Buffer) {
		b.now = now
	}
}

// New creates an empty Buffer holding at most capacity entries.
// A capacity below 1 is treated as 1.
func New(capacity int, opts ...Option) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	b := &Buffer{
		capacity: capacity,
		now:      time.Now,
		entries:  make([]string, 0, capacity),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Append sanitizes raw, prefixes it with the local time of day and adds it
// to the buffer, evicting the oldest entry if the buffer is full.
// It returns the formatted entry, e.g. "[09:41:07] listening on :9000".
func (b *Buffer) Append(raw string) string {
	entry := Format(b.now(), raw)

	b.mu.Lock()
	if len(b.entries) == b.capacity {
		// Shift in place so the backing array never grows past capacity.
		copy(b.entries, b.entries[1:])
		b.entries[len(b.entries)-1] = entry
	} else {
		b.entries = append(b.entries, entry)
	}
	b.mu.Unlock()

	return entry
}

// Snapshot returns a copy of the retained entries, oldest first.
func (b *Buffer) Snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, len(b.entries))
	copy(out, b.entries)
	return out
}

// Len returns the number of retained entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Cap returns the maximum number of retained entries.
func (b *Buffer) Cap() int {
	return b.capacity
}

// Reset discards all retained entries.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.entries = b.entries[:0]
	b.mu.Unlock()
}

// Format renders a log entry the way Append stores it.
func Format(t time.Time, raw string) string {
	return "[" + t.Local().Format(timestampLayout) + "] " + Sanitize(raw)
}
