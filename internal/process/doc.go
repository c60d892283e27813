// Package process supervises the single RustFS storage server launched by
// the launcher.
//
// A Supervisor owns the child process handle and the two in-memory log
// channels (launcher events and RustFS output). It is constructed once in
// main and shared by reference with the HTTP API and the shutdown path.
//
// Features:
//   - Launch RustFS from a LaunchConfig (data path, address, credentials)
//   - Stream stdout/stderr line by line into the process log, tagged
//     [STDOUT] / [STDERR], with ANSI colors stripped
//   - Push every new entry to the UI through a broadcast.Broadcaster
//   - Terminate with kill-and-wait so no zombie is left behind
//   - Diagnose the bundled binary by running it with --help
//
// Example usage:
//
//	sup := process.New(process.Config{BinariesDir: "/opt/rustfs/binaries"})
//	sup.SetLogger(logger)
//
//	cfg := process.DefaultLaunchConfig()
//	cfg.DataPath = "/srv/rustfs/data"
//	msg, err := sup.Launch(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer sup.Terminate()
//
// Output readers are not cancelled explicitly. They stop when the child's
// pipes reach end-of-file, which happens when the child (and, on Unix, its
// process group) exits. Terminate is the only way to stop them early.
package process
