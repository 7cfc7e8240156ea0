// Package operations runs the staged reconciliation workflow.
//
// A Session carries the tables produced by each upload so the next stage can
// consume them: the ZQM upload is filtered and retained, the PMR upload is
// enriched against the retained ZQM, and the SOH upload completes the run by
// aggregating stock and classifying every order.
//
// Core Components:
//
// Stage: one upload-driven unit of work. Stages declare the stages they
// require; running one before its requirements have completed is a STATE
// error.
//
// Manager: executes a stage against a session. It serializes stages of the
// same session, invalidates the outputs of later stages, records the stage
// state, and emits spans, metrics and structured logs.
//
// Registry: holds the stages in workflow order.
//
// MemorySessionStore: keeps sessions in memory with a sliding TTL and a cap
// on the number of live sessions.
package operations
