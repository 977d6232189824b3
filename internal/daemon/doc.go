// Package daemon hosts the long-running segue process: it owns the
// single-instance lock, wires the workflow manager to the session store,
// and serves the HTTP API the CLI talks to.
package daemon
