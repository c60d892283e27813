// Package panel serves the launcher's log viewer as an embedded asset.
//
// The page (HTML, CSS and a small script) is embedded into the Go binary
// using the go:embed directive, so the launcher has no runtime dependency on
// external files. The viewer loads the current log snapshots from the REST
// API, then appends entries pushed over the WebSocket event stream. It also
// carries a minimal launch form wired to the launch, validate, diagnose and
// terminate endpoints.
//
// Cache-control headers are set to no-cache: the assets are not
// content-hashed.
package panel
