// Package session models one logical connection attempt and the identity
// guard that decides which attempt is authoritative.
//
// Every asynchronous unit of work (timer callback, socket event) captures
// the Token of the attempt that created it and checks it against the
// Guard before touching shared state. A mismatch means a newer attempt
// has superseded it and the work must be discarded.
package session
