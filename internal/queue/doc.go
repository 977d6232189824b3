// Package queue persists render sessions in SQLite and provides the
// status-driven lifecycle the workflow manager operates on.
//
// A session moves pending -> planning -> planned -> rendering and ends in
// exactly one of completed, failed, or cancelled. Claiming a session for a
// processing stage is transactional so concurrent workers never pick up the
// same row.
package queue
