// Package planning is the workflow stage that turns an analysis bundle into
// a finalized mix decision via the strategist dispatcher.
package planning
