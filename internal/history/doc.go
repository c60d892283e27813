// Package history records RustFS launches in SQLite.
//
// Each launch becomes one row in the runs table: pid, binary, data path,
// address, start and stop times and the exit description. Log lines are
// never persisted; they live only in the supervisor's in-memory buffers.
//
// Recorder adapts a Repository to process.Observer so the supervisor
// feeds history without knowing about the database.
package history
