// Package workflow assembles the trip planning graph on top of the graph
// engine.
//
// The graph is:
//
//	budget_estimate -> research_plan -> [lodging, activities, food,
//	intercity_transport, recommendations] -> combined_human_review
//	(interrupt) -> planner -> stop
//
// The run suspends at combined_human_review. Resuming with ResumeFinal runs
// the planner; resuming with ExtraResearch re-runs the named research
// branches and suspends at combined_human_review again.
//
// Nodes never fail for a degraded research category. A node returns an
// error only when the session cannot produce a plan at all; that error
// wraps a *NoPlanError.
package workflow
