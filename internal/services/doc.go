// Package services implements the business layer between the HTTP transport
// and the reconciliation engine.
//
// ReconcileService owns the staged session workflow: it validates and parses
// uploads, runs them through the operations manager, and renders exports.
// It also offers a one-shot Reconcile that takes all three inputs at once.
// HealthService answers the health, readiness and version endpoints.
//
// Services receive their collaborators through constructors and log through
// an injected *slog.Logger tagged with their component name.
package services
