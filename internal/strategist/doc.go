// Package strategist decides how two analyzed tracks transition into each
// other. The dispatcher asks the external reasoning service for a plan,
// bounded by a hard deadline, validates whatever comes back, and otherwise
// hands the request to the deterministic rule-based planner. Every request
// finalizes exactly one decision.
package strategist
