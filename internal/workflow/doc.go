// Package workflow coordinates session processing: a bounded worker pool
// claims sessions from the store and drives them through the planning and
// rendering stages until every claimed session reaches a terminal status.
package workflow
