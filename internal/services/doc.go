// Package services defines the shared error taxonomy and context plumbing
// used by pipeline stages and external service clients.
//
// Errors are tagged with sentinel markers (ErrValidation, ErrTimeout, ...)
// via Wrap so the workflow manager can classify a failure without parsing
// message text. FailureStatus maps a stage error onto the session status the
// manager should persist.
package services
