// Package api defines the transport DTOs shared by the daemon HTTP
// surface and the CLI, plus a read-only session service that converts
// store rows into those DTOs.
package api
