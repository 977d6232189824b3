// Package rendering is the workflow stage that executes a planned mix
// decision against the source audio and produces the delivery artifacts.
package rendering
