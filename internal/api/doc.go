// Package api implements the HTTP REST API and WebSocket server for the RustFS launcher.
//
// This package provides:
//   - REST endpoints for launch, validate, diagnose, terminate and log retrieval
//   - WebSocket hub that receives every new log entry as an event
//   - Run history and health endpoints
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// The API server is the command boundary between the UI and the process
// supervisor. Requests are dispatched to the supervisor on the handler's own
// goroutine, so a slow launch or terminate never blocks other requests or the
// WebSocket pumps. The hub is registered as the supervisor's display surface
// when the server starts.
//
// # Security
//
// There is no authentication layer. The server binds to 127.0.0.1 by default
// and should stay on loopback unless fronted by something that authenticates.
//
// # Graceful Degradation
//
// Run history is optional. Without it the runs endpoints answer 503 and
// everything else keeps working.
package api
