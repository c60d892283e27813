// Package logbuf holds the bounded, in-memory log channels shown by the
// launcher UI.
//
// Each Buffer keeps the most recent entries of one channel (launcher
// events or RustFS output). Appending sanitizes the raw line, stamps it
// with the local time of day and evicts the oldest entry once the
// capacity is exceeded:
//
//	buf := logbuf.New(100)
//	entry := buf.Append("\x1b[32mready\x1b[0m") // "[14:03:27] ready"
//	lines := buf.Snapshot()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package logbuf
