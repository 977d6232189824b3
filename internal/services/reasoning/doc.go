// Package reasoning provides an OpenRouter chat client that proposes mix
// decisions for a pair of analyzed tracks.
//
// # Contract
//
// The client sends the analysis bundle and the user's transition preferences
// to a configured model with a structured prompt requesting JSON output. The
// response is parsed into a candidate decision.MixDecision. The candidate is
// untrusted: the dispatcher validates it structurally and falls back to the
// deterministic planner on any violation.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Propose: send the bundle, receive a candidate decision.
// Client.HealthCheck: verify API key and model availability.
//
// # Deadline Behaviour
//
// The client makes exactly one request per Propose call and never retries.
// The dispatcher owns the deadline and abandons the call when it expires.
package reasoning
