// Package shared holds helpers used across the backfill packages.
//
// testutil contains log capture and in-memory spreadsheet fixtures for
// tests. It must not import other backfill packages so that any package can
// use it from its own tests.
package shared
