// Package connection implements the chat Connection Supervisor.
//
// The Manager:
//   - Owns the single live socket to /ws/chat/{conversation}/{user}
//   - Runs a heartbeat engine on every open session
//   - Reconnects after unexpected closes with quadratic backoff, up to a ceiling
//   - Ignores callbacks from superseded sessions via the session guard
//   - Delivers de-duplicated messages, errors and state changes to handlers
package connection
