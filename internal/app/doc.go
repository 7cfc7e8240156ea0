// Package app wires the reconciliation web service together: configuration,
// logging, telemetry, the session store, services, middleware and routes.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, config.yaml and BACKFILL_* variables
//	2. Initialize logging and OpenTelemetry
//	3. Create the in-memory session store and stage manager
//	4. Build the reconcile and health services
//	5. Mount handlers behind the middleware chain
//
// # Usage
//
//	app, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := app.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// Run serves until SIGINT or SIGTERM and then drains in-flight requests.
// Sessions live in memory only and are dropped on shutdown.
package app
